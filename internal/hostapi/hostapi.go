// Package hostapi is the numeric call surface behind the C exports. Every
// argument and result is a float64 or a string; failures become -1, "" or
// 0 and never escape as errors or panics.
package hostapi

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/cryguy/offscreen"
	"github.com/cryguy/offscreen/internal/core"
)

const (
	ok   = 0
	fail = -1
)

// ClampInt converts a host double to an int32-range int. NaN becomes 0
// and infinities saturate.
func ClampInt(v float64) int {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	default:
		return int(v)
	}
}

// IsDown reads a host boolean.
func IsDown(v float64) bool { return v >= 0.5 }

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// FrameLen is the byte size of a w by h frame, or 0 for an invalid size.
func FrameLen(w, h float64) int {
	wi, hi := ClampInt(w), ClampInt(h)
	if wi <= 0 || hi <= 0 || wi > offscreen.MaxDimension || hi > offscreen.MaxDimension {
		return 0
	}
	return wi * hi * 4
}

// API holds the session the host is driving.
type API struct {
	mu      sync.Mutex
	session *offscreen.Session
	logOnce sync.Once

	// newEngine overrides the engine in tests.
	newEngine func() core.Engine
}

// New returns an API with no session.
func New() *API { return &API{} }

func (a *API) current() *offscreen.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// guard runs fn with the current session, mapping a missing session to
// missing and a panic to fail.
func (a *API) guard(op string, missing float64, fn func(*offscreen.Session) float64) (ret float64) {
	s := a.current()
	if s == nil {
		return missing
	}
	defer func() {
		if r := recover(); r != nil {
			s.Logger().Error("host call panicked", zap.String("op", op), zap.Any("panic", r))
			ret = fail
		}
	}()
	return fn(s)
}

func status(err error) float64 {
	if err != nil {
		return fail
	}
	return ok
}

func (a *API) configureLogging(cfg *offscreen.Config) {
	a.logOnce.Do(func() {
		l, err := offscreen.NewLogger(offscreen.LogConfig{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
		if err != nil {
			return
		}
		offscreen.SetLogger(l)
	})
}

// Create starts a session rendering into buf.
func (a *API) Create(w, h, fps float64, buf []byte, singleProcess bool) (ret float64) {
	defer func() {
		if r := recover(); r != nil {
			offscreen.Logger().Error("create panicked", zap.Any("panic", r))
			ret = fail
		}
	}()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return fail
	}
	cfg := offscreen.LoadConfigOrDefault()
	a.configureLogging(cfg)
	opts := offscreen.Options{
		Width:         ClampInt(w),
		Height:        ClampInt(h),
		FrameRate:     ClampInt(fps),
		Buffer:        buf,
		SingleProcess: singleProcess,
		Config:        cfg,
	}
	if a.newEngine != nil {
		opts.Engine = a.newEngine()
	}
	s, err := offscreen.Init(opts)
	if err != nil {
		offscreen.Logger().Warn("create failed", zap.Error(err))
		return fail
	}
	a.session = s
	return ok
}

// Step returns 1 when a new frame reached the buffer, 0 otherwise.
func (a *API) Step() float64 {
	return a.guard("step", fail, func(s *offscreen.Session) float64 {
		presented, err := s.Step()
		if err != nil {
			return fail
		}
		return flag(presented)
	})
}

// Cleanup tears the session down.
func (a *API) Cleanup() float64 {
	return a.guard("cleanup", fail, func(s *offscreen.Session) float64 {
		a.mu.Lock()
		a.session = nil
		a.mu.Unlock()
		return status(s.Teardown())
	})
}

func (a *API) SetURL(url string) float64 {
	return a.guard("set_url", fail, func(s *offscreen.Session) float64 { return status(s.SetURL(url)) })
}

func (a *API) SetHTML(content, baseURL string) float64 {
	return a.guard("set_html", fail, func(s *offscreen.Session) float64 { return status(s.SetHTML(content, baseURL)) })
}

func (a *API) ExecuteScript(js string) float64 {
	return a.guard("execute_script", fail, func(s *offscreen.Session) float64 { return status(s.ExecuteScript(js)) })
}

func (a *API) Stop() float64 {
	return a.guard("stop", fail, func(s *offscreen.Session) float64 { return status(s.Stop()) })
}

func (a *API) Reload() float64 {
	return a.guard("reload", fail, func(s *offscreen.Session) float64 { return status(s.Reload()) })
}

func (a *API) Back() float64 {
	return a.guard("back", fail, func(s *offscreen.Session) float64 { return status(s.Back()) })
}

func (a *API) Forward() float64 {
	return a.guard("forward", fail, func(s *offscreen.Session) float64 { return status(s.Forward()) })
}

// text runs fn like guard but for string results.
func (a *API) text(op string, fn func(*offscreen.Session) string) (out string) {
	s := a.current()
	if s == nil {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			s.Logger().Error("host call panicked", zap.String("op", op), zap.Any("panic", r))
			out = ""
		}
	}()
	return fn(s)
}

func (a *API) GetURL() string {
	return a.text("get_url", (*offscreen.Session).URL)
}

// Resize keeps the current buffer, which must fit the new size.
func (a *API) Resize(w, h float64) float64 {
	return a.guard("resize", fail, func(s *offscreen.Session) float64 {
		return status(s.Resize(ClampInt(w), ClampInt(h), nil))
	})
}

// ResizeBuffer switches to buf along with the new size.
func (a *API) ResizeBuffer(w, h float64, buf []byte) float64 {
	return a.guard("resize_buffer", fail, func(s *offscreen.Session) float64 {
		if buf == nil {
			return fail
		}
		return status(s.Resize(ClampInt(w), ClampInt(h), buf))
	})
}

func (a *API) GetCursor() float64 {
	return a.guard("get_cursor", 0, func(s *offscreen.Session) float64 { return float64(s.Cursor()) })
}

func (a *API) GetIsLoaded() float64 {
	return a.guard("get_is_loaded", 0, func(s *offscreen.Session) float64 { return flag(s.IsLoaded()) })
}

func (a *API) GetCanBack() float64 {
	return a.guard("get_can_back", 0, func(s *offscreen.Session) float64 { return flag(s.CanGoBack()) })
}

func (a *API) GetCanForward() float64 {
	return a.guard("get_can_forward", 0, func(s *offscreen.Session) float64 { return flag(s.CanGoForward()) })
}

func (a *API) GetLastHTTPCode() float64 {
	return a.guard("get_last_http_code", 0, func(s *offscreen.Session) float64 { return float64(s.LastHTTPStatus()) })
}

func (a *API) GetCloseAllowed() float64 {
	return a.guard("get_close_allowed", 0, func(s *offscreen.Session) float64 { return flag(s.CloseAllowed()) })
}

func (a *API) GetDebug(metric float64) float64 {
	return a.guard("get_debug", 0, func(s *offscreen.Session) float64 { return float64(s.Debug(ClampInt(metric))) })
}

func (a *API) MouseMove(x, y float64) float64 {
	return a.guard("mouse_move", fail, func(s *offscreen.Session) float64 {
		return status(s.MouseMove(ClampInt(x), ClampInt(y)))
	})
}

func (a *API) MouseWheel(dx, dy float64) float64 {
	return a.guard("mouse_wheel", fail, func(s *offscreen.Session) float64 {
		return status(s.MouseWheel(ClampInt(dx), ClampInt(dy)))
	})
}

func (a *API) MouseButton(x, y, id, down float64) float64 {
	return a.guard("mouse_button", fail, func(s *offscreen.Session) float64 {
		return status(s.MouseButton(ClampInt(x), ClampInt(y), ClampInt(id), IsDown(down)))
	})
}

func (a *API) KeyEvent(code, modifiers, down float64) float64 {
	return a.guard("key_event", fail, func(s *offscreen.Session) float64 {
		return status(s.Key(ClampInt(code), ClampInt(modifiers), IsDown(down)))
	})
}

func (a *API) KeyChar(code float64) float64 {
	return a.guard("key_char", fail, func(s *offscreen.Session) float64 {
		return status(s.Char(ClampInt(code)))
	})
}

func (a *API) RequestSource() float64 {
	return a.guard("request_source", fail, func(s *offscreen.Session) float64 { return status(s.RequestSource()) })
}

func (a *API) CheckSourceReady() float64 {
	return a.guard("check_source_ready", 0, func(s *offscreen.Session) float64 { return flag(s.SourceReady()) })
}

func (a *API) GetSource() string {
	return a.text("get_source", (*offscreen.Session).Source)
}

func (a *API) CheckTransferReady() float64 {
	return a.guard("check_transfer_ready", 0, func(s *offscreen.Session) float64 { return flag(s.TransferReady()) })
}

func (a *API) GetTransferValue() string {
	return a.text("get_transfer_value", (*offscreen.Session).Transfer)
}

func (a *API) ResetTransfer() float64 {
	return a.guard("reset_transfer", fail, func(s *offscreen.Session) float64 {
		s.ResetTransfer()
		return ok
	})
}
