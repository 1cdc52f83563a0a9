package core

import "strconv"

// JSRuntime abstracts the script engine (QuickJS, V8 or goja) behind the
// interface document setup in internal/webapi and the event loop in
// internal/eventloop are written against.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// EvalBool evaluates JavaScript and returns the result as a Go bool.
	EvalBool(js string) (bool, error)

	// EvalInt evaluates JavaScript and returns the result as a Go int.
	EvalInt(js string) (int, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// Arguments and results are marshaled by the backend. When the Go
	// function returns a non-nil error the JS wrapper throws instead.
	RegisterFunc(name string, fn any) error

	// SetGlobal sets a global variable. string, int, float64 and bool are
	// converted to their JS counterparts.
	SetGlobal(name string, value any) error

	// RunMicrotasks pumps the microtask queue.
	RunMicrotasks()
}

// ScriptContext is a JSRuntime owned by one document. Interrupt may be
// called from any goroutine to abort a running script; Close releases the
// underlying VM and must run on the owning goroutine.
type ScriptContext interface {
	JSRuntime
	Interrupt()
	Close()
}

// RuntimeFactory creates a fresh script context. Backends are selected at
// build time and handed to the engine through Settings.
type RuntimeFactory func(memoryLimitMB int) (ScriptContext, error)

// BoolToInt converts a bool to 1 (true) or 0 (false) for JS interop,
// since some JS engines cannot marshal Go bool return values directly.
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// JsEscape escapes a string for embedding in JavaScript source.
func JsEscape(s string) string {
	return strconv.Quote(s)
}
