package message

import "github.com/harborbridge/wiremux/pkg/value"

// appErrorMarker is the record field that flags a ReplyError payload as a
// structured application error rather than an arbitrary value.
const appErrorMarker = "__wiremux_error__"

// AppError is a rehydrated application error: a ReplyError payload whose
// record carried the error marker flag alongside name, message, and
// stack strings.
type AppError struct {
	Name    string
	Message string
	Stack   string
}

func (e AppError) Error() string {
	if e.Message != "" {
		return e.Name + ": " + e.Message
	}
	return e.Name
}

// NewAppError builds the wire Record for the given name, message, and
// stack, suitable as a ReplyError payload.
func NewAppError(name, msg, stack string) value.Record {
	return value.Record{
		appErrorMarker: true,
		"name":         name,
		"message":      msg,
		"stack":        stack,
	}
}

// FromError builds an AppError record from a Go error. An AppError keeps
// its own name, message, and stack; any other error is named "Error" and
// carries err.Error() as its message and an empty stack.
func FromError(err error) value.Record {
	if app, ok := err.(AppError); ok { //nolint:errorlint
		return NewAppError(app.Name, app.Message, app.Stack)
	}
	return NewAppError("Error", err.Error(), "")
}

// asAppError reports whether v is a Record carrying the error marker and,
// if so, rehydrates it into an AppError.
func asAppError(v any) (AppError, bool) {
	rec, ok := v.(value.Record)
	if !ok {
		return AppError{}, false
	}
	marker, ok := rec[appErrorMarker].(bool)
	if !ok || !marker {
		return AppError{}, false
	}
	name, _ := rec["name"].(string)
	msg, _ := rec["message"].(string)
	stack, _ := rec["stack"].(string)
	return AppError{Name: name, Message: msg, Stack: stack}, true
}
