package payment

import "errors"

var (
	// ErrSecurityDataMissing is returned when the initialization response lacks a required field
	ErrSecurityDataMissing = errors.New("payment security data missing")

	// ErrPaymentInProgress is returned when a redirect is already being prepared for the visitor
	ErrPaymentInProgress = errors.New("payment already in progress")

	// ErrInvalidOrderID is returned when no order id is given
	ErrInvalidOrderID = errors.New("order id is required")

	// ErrUnknownVariant is returned for a gateway variant other than production or test
	ErrUnknownVariant = errors.New("unknown payment gateway variant")
)
