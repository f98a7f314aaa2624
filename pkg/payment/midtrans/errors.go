package midtrans

import "errors"

var (
	// ErrInvalidRequest is returned when the request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrChargeFailed is returned when the charge request is rejected
	ErrChargeFailed = errors.New("charge failed")

	// ErrTransactionNotFound is returned when the order id is unknown to the gateway
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNetworkError is returned when there's a network communication error
	ErrNetworkError = errors.New("network error")

	// ErrUnauthorized is returned when the server key is invalid
	ErrUnauthorized = errors.New("unauthorized: invalid server key")
)
