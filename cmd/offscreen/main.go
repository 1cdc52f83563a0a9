// Command offscreen builds the C shared library hosts load:
//
//	go build -buildmode=c-shared -o liboffscreen.so ./cmd/offscreen
//
// Every export returns a double or a C string. Strings returned by one
// export stay valid until the next call of that same export.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/cryguy/offscreen/internal/hostapi"
)

var api = hostapi.New()

// cstrings holds the last string each export returned.
var (
	cstrMu   sync.Mutex
	cstrings = map[string]*C.char{}
)

func returnString(export, s string) *C.char {
	cs := C.CString(s)
	cstrMu.Lock()
	if prev, ok := cstrings[export]; ok {
		C.free(unsafe.Pointer(prev))
	}
	cstrings[export] = cs
	cstrMu.Unlock()
	return cs
}

// hostBuffer views host memory of w*h*4 bytes. It is nil for a null
// pointer or an invalid size.
func hostBuffer(w, h C.double, ptr unsafe.Pointer) []byte {
	n := hostapi.FrameLen(float64(w), float64(h))
	if ptr == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), n)
}

func d(v float64) C.double { return C.double(v) }

//export offscreen_create
func offscreen_create(w, h, fps C.double, buf unsafe.Pointer) C.double {
	return d(api.Create(float64(w), float64(h), float64(fps), hostBuffer(w, h, buf), false))
}

//export offscreen_create_in_single_process_mode
func offscreen_create_in_single_process_mode(w, h, fps C.double, buf unsafe.Pointer) C.double {
	return d(api.Create(float64(w), float64(h), float64(fps), hostBuffer(w, h, buf), true))
}

//export offscreen_step
func offscreen_step() C.double { return d(api.Step()) }

//export offscreen_cleanup
func offscreen_cleanup() C.double { return d(api.Cleanup()) }

//export offscreen_set_url
func offscreen_set_url(url *C.char) C.double { return d(api.SetURL(C.GoString(url))) }

//export offscreen_set_html
func offscreen_set_html(content, baseURL *C.char) C.double {
	return d(api.SetHTML(C.GoString(content), C.GoString(baseURL)))
}

//export offscreen_get_url
func offscreen_get_url() *C.char { return returnString("get_url", api.GetURL()) }

//export offscreen_execute_script
func offscreen_execute_script(js *C.char) C.double { return d(api.ExecuteScript(C.GoString(js))) }

//export offscreen_stop
func offscreen_stop() C.double { return d(api.Stop()) }

//export offscreen_reload
func offscreen_reload() C.double { return d(api.Reload()) }

//export offscreen_back
func offscreen_back() C.double { return d(api.Back()) }

//export offscreen_forward
func offscreen_forward() C.double { return d(api.Forward()) }

//export offscreen_resize
func offscreen_resize(w, h C.double) C.double { return d(api.Resize(float64(w), float64(h))) }

//export offscreen_resize_buffer
func offscreen_resize_buffer(w, h C.double, buf unsafe.Pointer) C.double {
	return d(api.ResizeBuffer(float64(w), float64(h), hostBuffer(w, h, buf)))
}

//export offscreen_get_cursor
func offscreen_get_cursor() C.double { return d(api.GetCursor()) }

//export offscreen_get_is_loaded
func offscreen_get_is_loaded() C.double { return d(api.GetIsLoaded()) }

//export offscreen_get_can_back
func offscreen_get_can_back() C.double { return d(api.GetCanBack()) }

//export offscreen_get_can_forward
func offscreen_get_can_forward() C.double { return d(api.GetCanForward()) }

//export offscreen_get_last_http_code
func offscreen_get_last_http_code() C.double { return d(api.GetLastHTTPCode()) }

//export offscreen_get_close_allowed
func offscreen_get_close_allowed() C.double { return d(api.GetCloseAllowed()) }

//export offscreen_get_debug
func offscreen_get_debug(metric C.double) C.double { return d(api.GetDebug(float64(metric))) }

//export offscreen_mouse_move
func offscreen_mouse_move(x, y C.double) C.double { return d(api.MouseMove(float64(x), float64(y))) }

//export offscreen_mouse_wheel
func offscreen_mouse_wheel(dx, dy C.double) C.double {
	return d(api.MouseWheel(float64(dx), float64(dy)))
}

//export offscreen_mouse_button
func offscreen_mouse_button(x, y, id, down C.double) C.double {
	return d(api.MouseButton(float64(x), float64(y), float64(id), float64(down)))
}

//export offscreen_key_event
func offscreen_key_event(code, modifiers, down C.double) C.double {
	return d(api.KeyEvent(float64(code), float64(modifiers), float64(down)))
}

//export offscreen_key_char
func offscreen_key_char(code C.double) C.double { return d(api.KeyChar(float64(code))) }

//export offscreen_request_source
func offscreen_request_source() C.double { return d(api.RequestSource()) }

//export offscreen_check_source_ready
func offscreen_check_source_ready() C.double { return d(api.CheckSourceReady()) }

//export offscreen_get_source
func offscreen_get_source() *C.char { return returnString("get_source", api.GetSource()) }

//export offscreen_check_transfer_ready
func offscreen_check_transfer_ready() C.double { return d(api.CheckTransferReady()) }

//export offscreen_get_transfer_value
func offscreen_get_transfer_value() *C.char {
	return returnString("get_transfer_value", api.GetTransferValue())
}

//export offscreen_reset_transfer
func offscreen_reset_transfer() C.double { return d(api.ResetTransfer()) }

func main() {}
