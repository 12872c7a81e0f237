package schema

import "errors"

var (
	// ErrUnsupported indicates the indicator does not implement a method.
	ErrUnsupported = errors.New("indicator method unsupported")
	// ErrInvalidTab indicates a missing or negative tab id.
	ErrInvalidTab = errors.New("invalid tab")
	// ErrInvalidEvent indicates a lifecycle event that cannot be routed.
	ErrInvalidEvent = errors.New("invalid lifecycle event")
	// ErrStoreClosed indicates the tab store was used after Close.
	ErrStoreClosed = errors.New("store closed")
	// ErrMessageTooLarge indicates a native message exceeded the size limit.
	ErrMessageTooLarge = errors.New("native message too large")
)
