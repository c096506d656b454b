package enums

import "fmt"

// LineItemKind classifies order lines: regular products, build-a-box bundles,
// and zero-price lines produced by a reward redemption.
type LineItemKind string

const (
	LineItemKindProduct   LineItemKind = "product"
	LineItemKindCustomBox LineItemKind = "custom_box"
	LineItemKindReward    LineItemKind = "reward"
)

var validLineItemKinds = []LineItemKind{
	LineItemKindProduct,
	LineItemKindCustomBox,
	LineItemKindReward,
}

// String implements fmt.Stringer.
func (k LineItemKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known LineItemKind.
func (k LineItemKind) IsValid() bool {
	for _, candidate := range validLineItemKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseLineItemKind converts raw input into a LineItemKind.
func ParseLineItemKind(value string) (LineItemKind, error) {
	for _, candidate := range validLineItemKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid line item kind %q", value)
}
