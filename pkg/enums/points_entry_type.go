package enums

import "fmt"

// PointsEntryType classifies a loyalty ledger mutation.
type PointsEntryType string

const (
	PointsEntryTypeEarn   PointsEntryType = "earn"
	PointsEntryTypeRedeem PointsEntryType = "redeem"
	PointsEntryTypeAdjust PointsEntryType = "adjust"
)

var validPointsEntryTypes = []PointsEntryType{
	PointsEntryTypeEarn,
	PointsEntryTypeRedeem,
	PointsEntryTypeAdjust,
}

// String implements fmt.Stringer.
func (t PointsEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known PointsEntryType.
func (t PointsEntryType) IsValid() bool {
	for _, candidate := range validPointsEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePointsEntryType converts raw input into a PointsEntryType.
func ParsePointsEntryType(value string) (PointsEntryType, error) {
	for _, candidate := range validPointsEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid points entry type %q", value)
}
