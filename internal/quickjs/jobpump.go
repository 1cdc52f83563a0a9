//go:build !v8 && !goja

package quickjs

import (
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// executePendingJobs drains the QuickJS job queue. The Go wrapper never calls
// JS_ExecutePendingJob itself, so promise reactions would otherwise stay
// queued forever. Returns the number of jobs run.
func executePendingJobs(vm *quickjs.VM) int {
	rt, tls, ok := runtimeHandles(vm)
	if !ok {
		return 0
	}
	n := 0
	for lib.XJS_ExecutePendingJob(tls, rt, 0) > 0 {
		n++
	}
	return n
}

// runtimeHandles reads the unexported runtime pointer and TLS out of a VM.
//
// Layout as of modernc.org/quickjs v0.17.1:
//
//	type VM struct {
//	    cContext uintptr
//	    ...
//	    runtime  *runtime
//	}
//
//	type runtime struct {
//	    cRuntime uintptr
//	    tls      *libc.TLS
//	}
func runtimeHandles(vm *quickjs.VM) (cRuntime uintptr, tls *libc.TLS, ok bool) {
	field := reflect.ValueOf(vm).Elem().FieldByName("runtime")
	if !field.IsValid() || field.IsNil() {
		return 0, nil, false
	}
	inner := reflect.NewAt(field.Type().Elem(), unsafe.Pointer(field.Pointer())).Elem()

	rtField := inner.FieldByName("cRuntime")
	tlsField := inner.FieldByName("tls")
	if !rtField.IsValid() || !tlsField.IsValid() || tlsField.IsNil() {
		return 0, nil, false
	}
	return uintptr(rtField.Uint()), (*libc.TLS)(unsafe.Pointer(tlsField.Pointer())), true
}
