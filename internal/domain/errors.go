package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound        = errors.New("not found")
	ErrBadRequest      = errors.New("bad request")
	ErrProductMismatch = errors.New("product mismatch")

	// ErrStorage marks any failure of the user store backend. It is the only
	// error that makes a provisioning request fail.
	ErrStorage = errors.New("storage unavailable")

	ErrNotifyAuth           = errors.New("notification transport rejected credentials")
	ErrNotifyTransient      = errors.New("notification transport failure")
	ErrNotifyInvalidAddress = errors.New("invalid notification address")

	ErrPublish = errors.New("publication failed")
)
