package core

import (
	"bytes"

	json "github.com/goccy/go-json"

	"pkt.systems/capturebadge/schema"
)

// Diff decides whether value must be pushed for method. It returns the
// stable encoding of value, which the caller records in applied before
// issuing the call.
func Diff(applied schema.AppliedState, method schema.Method, value any, force bool) (json.RawMessage, bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false, err
	}
	if force {
		return raw, true, nil
	}
	last, ok := applied[method]
	if !ok {
		return raw, true, nil
	}
	return raw, !bytes.Equal(last, raw), nil
}
