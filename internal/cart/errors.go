package cart

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("please log in to manage your cart")
	ErrSessionExpired   = errors.New("session expired, please log in again")
	ErrItemNotFound     = errors.New("item not found in cart")
	ErrInvalidItem      = errors.New("invalid cart item")
)

// OperationError is a failed backend cart call. Message is the server's text
// when it sent one.
type OperationError struct {
	Op      string
	Message string
	Err     error
}

func (e *OperationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cart %s failed", e.Op)
	}
	return fmt.Sprintf("cart %s failed: %s", e.Op, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
