package scheduling

// ExpandWindow turns a weekly window into the discrete candidate slots for one
// day using a greedy forward fill: slots of slotMinutes are emitted from the
// window start, separated by bufferMinutes, and a slot that would run past the
// window end is dropped rather than shortened. Trailing time that does not fit
// a full slot is wasted.
//
// Pure and deterministic; callers resolve slotMinutes and bufferMinutes once
// up front (window override, then specialist config) and pass them in.
func ExpandWindow(w *WeeklyWindow, slotMinutes, bufferMinutes int) []Slot {
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}
	if bufferMinutes < 0 {
		bufferMinutes = 0
	}

	var slots []Slot
	cursor := w.StartTime
	for cursor+MinuteOfDay(slotMinutes) <= w.EndTime {
		slots = append(slots, Slot{
			Start:     cursor,
			End:       cursor + MinuteOfDay(slotMinutes),
			Available: true,
		})
		cursor += MinuteOfDay(slotMinutes + bufferMinutes)
	}
	return slots
}
