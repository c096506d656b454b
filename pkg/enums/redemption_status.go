package enums

import "fmt"

// RedemptionStatus tracks the lifecycle of a reward redemption.
type RedemptionStatus string

const (
	RedemptionStatusPending    RedemptionStatus = "pending"
	RedemptionStatusProcessing RedemptionStatus = "processing"
	RedemptionStatusDelivered  RedemptionStatus = "delivered"
	RedemptionStatusCancelled  RedemptionStatus = "cancelled"
)

var validRedemptionStatuses = []RedemptionStatus{
	RedemptionStatusPending,
	RedemptionStatusProcessing,
	RedemptionStatusDelivered,
	RedemptionStatusCancelled,
}

// String implements fmt.Stringer.
func (s RedemptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RedemptionStatus.
func (s RedemptionStatus) IsValid() bool {
	for _, candidate := range validRedemptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRedemptionStatus converts raw input into a RedemptionStatus.
func ParseRedemptionStatus(value string) (RedemptionStatus, error) {
	for _, candidate := range validRedemptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid redemption status %q", value)
}
