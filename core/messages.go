package core

// Messages looks up localized strings by key.
type Messages interface {
	Message(key string) string
}

// Message keys used by the engine.
const (
	MsgDefaultTooltip        = "buttonDefaultTooltip"
	MsgInitializingBadge     = "buttonInitializingBadge"
	MsgInitializingTooltip   = "buttonInitializingTooltip"
	MsgErrorBadge            = "buttonErrorBadge"
	MsgOKBadge               = "buttonOKBadge"
	MsgSaveProgressTooltip   = "buttonSaveProgressTooltip"
	MsgAutoSaveActiveBadge   = "buttonAutoSaveActiveBadge"
	MsgAutoSaveActiveTooltip = "buttonAutoSaveActiveTooltip"
)

// MessageFunc adapts a function to Messages.
type MessageFunc func(key string) string

// Message calls f(key).
func (f MessageFunc) Message(key string) string {
	return f(key)
}
