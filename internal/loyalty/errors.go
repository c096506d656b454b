package loyalty

import "fmt"

// InsufficientPointsError rejects a debit larger than the current balance.
type InsufficientPointsError struct {
	Required  int
	Available int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: need %d, have %d", e.Required, e.Available)
}
