package repositories

import (
	"errors"
	"fmt"
)

// ErrOrderStatusConflict indicates the order's stored status no longer matches
// the status the caller read before mutating it.
var ErrOrderStatusConflict = errors.New("repositories: order status conflict")

// StockErrorCode enumerates repository error causes for stock-guarded writes.
type StockErrorCode string

const (
	// StockErrorInsufficient indicates requested quantity exceeds availability.
	StockErrorInsufficient StockErrorCode = "stock_insufficient"
	// StockErrorProductNotFound indicates the product document is missing.
	StockErrorProductNotFound StockErrorCode = "stock_product_not_found"
	// StockErrorProductInactive indicates the product is no longer purchasable.
	StockErrorProductInactive StockErrorCode = "stock_product_inactive"
)

// StockError wraps stock-specific failures with machine readable codes.
type StockError struct {
	Op        string
	Code      StockErrorCode
	ProductID string
	Requested int
	Available int
	Err       error
}

// Error implements the error interface.
func (e *StockError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: product %s", e.Code, e.ProductID)
	if e.Code == StockErrorInsufficient {
		msg = fmt.Sprintf("%s (requested %d, available %d)", msg, e.Requested, e.Available)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Unwrap exposes the underlying error, if any.
func (e *StockError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStockError constructs a typed stock error.
func NewStockError(code StockErrorCode, productID string, requested, available int) *StockError {
	return &StockError{
		Code:      code,
		ProductID: productID,
		Requested: requested,
		Available: available,
	}
}
