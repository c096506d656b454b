package inventory

import (
	"fmt"

	"github.com/google/uuid"
)

// StockError names the product that blocked an order.
type StockError struct {
	ProductID uuid.UUID
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.Name, e.Requested, e.Available)
}

// BoxSizeError rejects a custom box whose cookie count does not match the
// configured box size exactly.
type BoxSizeError struct {
	Expected int
	Got      int
}

func (e *BoxSizeError) Error() string {
	return fmt.Sprintf("box must contain exactly %d cookies, got %d", e.Expected, e.Got)
}
