package orders

import (
	"errors"
	"fmt"

	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
)

// ErrNotFound is returned when an order lookup misses.
var ErrNotFound = errors.New("order not found")

// IllegalTransitionError names the current state and the attempted target.
// Illegal moves are always rejected, never coerced into a nearby legal one.
type IllegalTransitionError struct {
	From   enums.OrderStatus
	To     enums.OrderStatus
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot move order from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}
