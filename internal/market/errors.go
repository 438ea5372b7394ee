package market

import "errors"

// Caller-facing error taxonomy. Handlers map these onto HTTP status
// codes; everything else is treated as an internal error.
var (
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrCrossSupplierCart      = errors.New("cart is limited to one supplier")
	ErrMissingDeliveryAddress = errors.New("missing delivery address")
	ErrNotNegotiable          = errors.New("product is not negotiable")
)

// Retryable reports whether the failure can succeed on a later attempt
// after user action (restock, address fix), as opposed to a request
// that can never succeed as-is.
func Retryable(err error) bool {
	return errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrMissingDeliveryAddress)
}
