package schema

// AppliedEvent reports one attempted indicator call.
type AppliedEvent struct {
	TabID    TabID
	Property Property
	Method   Method
	Value    any
	Forced   bool
	// Err is the indicator failure, nil on success.
	Err error
}

// IndicatorCall is a single setter invocation for the indicator.
type IndicatorCall struct {
	TabID    TabID
	Property Property
	Method   Method
	Value    any
}
