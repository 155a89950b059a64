package catalog

const (
	// FamilyDiscountPercentPerMember is the discount granted for each family
	// member beyond the account holder booked under the same family group.
	FamilyDiscountPercentPerMember = 15
	// MaxFamilyDiscountPercent caps the accumulated family discount.
	MaxFamilyDiscountPercent = 50
)

// FamilyDiscountPercent returns the discount percentage for the memberIndex-th
// family member (0 is the account holder, who pays full price).
func FamilyDiscountPercent(memberIndex int) int {
	if memberIndex <= 0 {
		return 0
	}
	pct := memberIndex * FamilyDiscountPercentPerMember
	if pct > MaxFamilyDiscountPercent {
		pct = MaxFamilyDiscountPercent
	}
	return pct
}

// DiscountedFeeCents applies the family discount to a fee. All arithmetic is
// integral; the result is truncated toward zero, never rounded up.
func DiscountedFeeCents(feeCents int64, memberIndex int) int64 {
	pct := int64(FamilyDiscountPercent(memberIndex))
	return feeCents * (100 - pct) / 100
}
