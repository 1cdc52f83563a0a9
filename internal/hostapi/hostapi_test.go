package hostapi

import (
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/offscreen"
	"github.com/cryguy/offscreen/internal/core"
)

func TestClampInt(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{12.9, 12},
		{-3.7, -3},
		{math.NaN(), 0},
		{math.Inf(1), math.MaxInt32},
		{math.Inf(-1), math.MinInt32},
		{1e12, math.MaxInt32},
		{-1e12, math.MinInt32},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClampInt(tc.in), "%v", tc.in)
	}
}

func TestIsDown(t *testing.T) {
	assert.False(t, IsDown(0))
	assert.False(t, IsDown(0.49))
	assert.True(t, IsDown(0.5))
	assert.True(t, IsDown(1))
	assert.False(t, IsDown(math.NaN()))
}

func TestFrameLen(t *testing.T) {
	assert.Equal(t, 800*600*4, FrameLen(800, 600))
	assert.Zero(t, FrameLen(0, 600))
	assert.Zero(t, FrameLen(math.NaN(), 1))
	assert.Zero(t, FrameLen(1e10, 1e10))
	assert.Zero(t, FrameLen(math.MaxInt32, math.MaxInt32))
	assert.Zero(t, FrameLen(offscreen.MaxDimension+1, 1))
	assert.Equal(t, offscreen.MaxDimension*offscreen.MaxDimension*4, FrameLen(offscreen.MaxDimension, offscreen.MaxDimension))
}

func TestAPI_NotInitialized(t *testing.T) {
	a := New()
	assert.Equal(t, -1.0, a.Step())
	assert.Equal(t, -1.0, a.Cleanup())
	assert.Equal(t, -1.0, a.SetURL("about:blank"))
	assert.Equal(t, -1.0, a.SetHTML("<p>", ""))
	assert.Equal(t, -1.0, a.ExecuteScript("1"))
	assert.Equal(t, -1.0, a.Stop())
	assert.Equal(t, -1.0, a.Reload())
	assert.Equal(t, -1.0, a.Back())
	assert.Equal(t, -1.0, a.Forward())
	assert.Equal(t, -1.0, a.Resize(10, 10))
	assert.Equal(t, -1.0, a.ResizeBuffer(10, 10, make([]byte, 400)))
	assert.Equal(t, -1.0, a.MouseMove(1, 1))
	assert.Equal(t, -1.0, a.MouseWheel(1, 1))
	assert.Equal(t, -1.0, a.MouseButton(1, 1, 0, 1))
	assert.Equal(t, -1.0, a.KeyEvent(65, 0, 1))
	assert.Equal(t, -1.0, a.KeyChar(65))
	assert.Equal(t, -1.0, a.RequestSource())
	assert.Equal(t, -1.0, a.ResetTransfer())

	assert.Zero(t, a.GetCursor())
	assert.Zero(t, a.GetIsLoaded())
	assert.Zero(t, a.GetCanBack())
	assert.Zero(t, a.GetCanForward())
	assert.Zero(t, a.GetLastHTTPCode())
	assert.Zero(t, a.GetCloseAllowed())
	assert.Zero(t, a.GetDebug(0))
	assert.Zero(t, a.CheckSourceReady())
	assert.Zero(t, a.CheckTransferReady())

	assert.Empty(t, a.GetURL())
	assert.Empty(t, a.GetSource())
	assert.Empty(t, a.GetTransferValue())
}

func TestAPI_CreateRejectsBadArguments(t *testing.T) {
	a := New()
	assert.Equal(t, -1.0, a.Create(0, 10, 30, make([]byte, 400), false))
	assert.Equal(t, -1.0, a.Create(10, 10, 30, make([]byte, 10), false))
	assert.Equal(t, -1.0, a.Create(math.NaN(), 10, 30, nil, false))
	assert.Equal(t, -1.0, a.Create(1e10, 1e10, 60, make([]byte, 16), false))
	assert.Equal(t, -1.0, a.Create(math.MaxInt32, math.MaxInt32, 60, make([]byte, 16), false))
}

func TestAPI_Headless(t *testing.T) {
	t.Setenv("OFFSCREEN_CACHE_PATH", t.TempDir())
	a := New()
	buf := make([]byte, FrameLen(200, 100))
	require.Equal(t, 0.0, a.Create(200, 100, 60, buf, false))
	assert.Equal(t, -1.0, a.Create(200, 100, 60, buf, false), "one session at a time")

	step := func(cond func() bool) {
		require.Eventually(t, func() bool {
			require.NotEqual(t, -1.0, a.Step())
			return cond()
		}, 10*time.Second, time.Millisecond)
	}
	step(func() bool { return a.GetIsLoaded() == 1 })
	assert.Equal(t, "about:blank", a.GetURL())
	assert.Equal(t, 200.0, a.GetLastHTTPCode())

	require.Equal(t, 0.0, a.RequestSource())
	step(func() bool { return a.CheckSourceReady() == 1 })
	assert.True(t, strings.Contains(a.GetSource(), "<body>"))
	assert.Zero(t, a.CheckSourceReady())

	require.Equal(t, 0.0, a.ExecuteScript(`transfer("ping")`))
	step(func() bool { return a.CheckTransferReady() == 1 })
	assert.Equal(t, "ping", a.GetTransferValue())
	assert.Zero(t, a.CheckTransferReady())

	assert.Equal(t, -1.0, a.Resize(400, 400), "buffer too small")
	assert.Equal(t, 0.0, a.ResizeBuffer(400, 400, make([]byte, FrameLen(400, 400))))
	assert.Equal(t, 0.0, a.MouseButton(5, 5, math.NaN(), 1))
	assert.Equal(t, 0.0, a.KeyChar(math.Inf(1)))

	require.Equal(t, 0.0, a.Cleanup())
	assert.Equal(t, -1.0, a.Step())
	assert.Equal(t, -1.0, a.Cleanup())
}

// panicky is an engine whose message loop can be made to panic.
type panicky struct {
	armed  atomic.Bool
	client core.Client
}

func (e *panicky) Initialize(core.Settings, core.App) error { return nil }
func (e *panicky) Shutdown()                                {}

func (e *panicky) DoMessageLoopWork() {
	if e.armed.Load() {
		panic("engine fault")
	}
}

func (e *panicky) CreateBrowser(c core.Client, _ string, _ core.BrowserSettings) (core.Browser, error) {
	e.client = c
	b := stubBrowser{}
	c.LifeSpanHandler().OnAfterCreated(b)
	return b, nil
}

type stubBrowser struct{}

func (stubBrowser) ID() int                                                          { return 1 }
func (b stubBrowser) Host() core.BrowserHost                                         { return b }
func (b stubBrowser) MainFrame() core.Frame                                          { return b }
func (stubBrowser) StopLoad()                                                        {}
func (stubBrowser) Reload()                                                          {}
func (stubBrowser) GoBack()                                                          {}
func (stubBrowser) GoForward()                                                       {}
func (stubBrowser) CanGoBack() bool                                                  { return false }
func (stubBrowser) CanGoForward() bool                                               { return false }
func (stubBrowser) FrameCount() int                                                  { return 1 }
func (stubBrowser) SetFocus(bool)                                                    {}
func (stubBrowser) WasResized()                                                      {}
func (stubBrowser) CloseBrowser(bool)                                                {}
func (stubBrowser) SendMouseMoveEvent(core.MouseEvent, bool)                         {}
func (stubBrowser) SendMouseWheelEvent(core.MouseEvent, int, int)                    {}
func (stubBrowser) SendMouseClickEvent(core.MouseEvent, core.MouseButton, bool, int) {}
func (stubBrowser) SendKeyEvent(core.KeyEvent)                                       {}
func (stubBrowser) LoadURL(string)                                                   {}
func (stubBrowser) LoadString(string, string)                                        {}
func (stubBrowser) URL() string                                                      { return "about:blank" }
func (stubBrowser) ExecuteJavaScript(string, string, int)                            {}
func (stubBrowser) GetSource(core.StringVisitor)                                     { panic("no source") }

func TestAPI_RecoversPanics(t *testing.T) {
	e := &panicky{}
	a := New()
	a.newEngine = func() core.Engine { return e }
	require.Equal(t, 0.0, a.Create(4, 4, 30, make([]byte, 64), false))

	e.armed.Store(true)
	assert.Equal(t, -1.0, a.Step())
	assert.Equal(t, -1.0, a.RequestSource())
	e.armed.Store(false)

	assert.Equal(t, 0.0, a.Step())
	assert.Equal(t, "about:blank", a.GetURL())
	require.Equal(t, 0.0, a.Cleanup())
}
