package domain

import "errors"

var (
	ErrInvalidProduct             = errors.New("invalid product configuration")
	ErrInvalidComboSelection      = errors.New("invalid combo selection")
	ErrInsufficientComboSelection = errors.New("combo needs at least 2 components")
	ErrEmptyCart                  = errors.New("cart is empty")
	ErrInvalidPaymentMethod       = errors.New("invalid payment method")
	ErrInsufficientTender         = errors.New("cash received is less than total")
	ErrBelowMinimumPrice          = errors.New("price is below the category minimum")
	ErrInvalidQuote               = errors.New("invalid sale quote")
	ErrSoldOut                    = errors.New("product is sold out")
	ErrUnknownProduct             = errors.New("unknown product")
	ErrLineNotFound               = errors.New("cart line not found")
	ErrOrderNotFound              = errors.New("order not found")
	ErrHeldOrderNotFound          = errors.New("held order not found")
	ErrInvalidModifier            = errors.New("invalid modifier")
	ErrInvalidCount               = errors.New("invalid inventory count")
	ErrInvalidSource              = errors.New("invalid order source")
	ErrInvalidDate                = errors.New("invalid date")
	ErrRemoteSync                 = errors.New("remote sync failed")
	ErrSummarizerUnavailable      = errors.New("summarizer unavailable")
	ErrForbidden                  = errors.New("manager role required")
)
