package enums

import "fmt"

// RewardKind describes what a loyalty reward expands into at redemption time.
type RewardKind string

const (
	RewardKindPlainProduct     RewardKind = "plain_product"
	RewardKindPercentageCoupon RewardKind = "percentage_coupon"
	RewardKindCustomizableBox  RewardKind = "customizable_box"
)

var validRewardKinds = []RewardKind{
	RewardKindPlainProduct,
	RewardKindPercentageCoupon,
	RewardKindCustomizableBox,
}

// String implements fmt.Stringer.
func (k RewardKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known RewardKind.
func (k RewardKind) IsValid() bool {
	for _, candidate := range validRewardKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseRewardKind converts raw input into a RewardKind.
func ParseRewardKind(value string) (RewardKind, error) {
	for _, candidate := range validRewardKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reward kind %q", value)
}
