//go:build goja

package gojaengine

import (
	"errors"
	"fmt"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/dop251/goja"
)

// Runtime implements core.ScriptContext on a pure Go goja VM. It needs no cgo
// and no native heap, which makes it the backend for hosts that cannot load
// a C script engine.
type Runtime struct {
	vm *goja.Runtime
}

var _ core.ScriptContext = (*Runtime)(nil)

// New creates a goja VM. goja has no heap cap; the limit only bounds call
// depth.
func New(memoryLimitMB int) (core.ScriptContext, error) {
	vm := goja.New()
	if memoryLimitMB > 0 {
		vm.SetMaxCallStackSize(memoryLimitMB * 64)
	}
	// Page scripts see a browser global, not a CommonJS one.
	for _, name := range []string{"require", "process", "module", "exports"} {
		_ = vm.Set(name, goja.Undefined())
	}
	return &Runtime{vm: vm}, nil
}

func (r *Runtime) run(js string) (goja.Value, error) {
	v, err := r.vm.RunString(js)
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		r.vm.ClearInterrupt()
	}
	return v, err
}

// Eval evaluates JavaScript and discards the result.
func (r *Runtime) Eval(js string) error {
	_, err := r.run(js)
	return err
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *Runtime) EvalString(js string) (string, error) {
	v, err := r.run(js)
	if err != nil {
		return "", err
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}
	return v.String(), nil
}

// EvalBool evaluates JavaScript and returns the result as a Go bool.
func (r *Runtime) EvalBool(js string) (bool, error) {
	v, err := r.run(js)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}
	return v.ToBoolean(), nil
}

// EvalInt evaluates JavaScript and returns the result as a Go int.
func (r *Runtime) EvalInt(js string) (int, error) {
	v, err := r.run(js)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return int(v.ToInteger()), nil
}

// RegisterFunc exposes fn as a global. goja reflects the signature itself and
// throws when a trailing error result is non-nil.
func (r *Runtime) RegisterFunc(name string, fn any) error {
	if fn == nil {
		return fmt.Errorf("RegisterFunc: nil function for %q", name)
	}
	return r.vm.Set(name, fn)
}

// SetGlobal sets a global variable.
func (r *Runtime) SetGlobal(name string, value any) error {
	return r.vm.Set(name, value)
}

// RunMicrotasks is a no-op: goja drains its job queue when a top-level run
// returns.
func (r *Runtime) RunMicrotasks() {}

// Interrupt aborts the running script. Safe from any goroutine.
func (r *Runtime) Interrupt() {
	r.vm.Interrupt("script timeout")
}

// Close is a no-op; the VM is garbage collected.
func (r *Runtime) Close() {}
