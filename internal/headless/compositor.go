package headless

import (
	"sync/atomic"
	"time"

	"github.com/cryguy/offscreen/internal/core"
)

// Frame rate bounds for windowless painting.
const (
	defaultFrameRate = 30
	maxFrameRate     = 60
)

func clampFrameRate(fps int) int {
	switch {
	case fps <= 0:
		return defaultFrameRate
	case fps > maxFrameRate:
		return maxFrameRate
	default:
		return fps
	}
}

// compositor paints the latest display list on its own goroutine at the
// browser's frame rate. It only paints when the list or the view size
// changed since the previous frame.
type compositor struct {
	browser  *Browser
	handler  core.RenderHandler
	interval time.Duration

	latest atomic.Pointer[displayList]
	dirty  atomic.Bool
	frames atomic.Int64

	started atomic.Bool

	// Owned by the compositor goroutine.
	width, height int
	buf           []byte

	stop chan struct{}
	done chan struct{}
}

func newCompositor(b *Browser, handler core.RenderHandler, fps int) *compositor {
	return &compositor{
		browser:  b,
		handler:  handler,
		interval: time.Second / time.Duration(clampFrameRate(fps)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *compositor) start() {
	c.started.Store(true)
	go c.run()
}

func (c *compositor) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// update hands the compositor a new display list.
func (c *compositor) update(dl *displayList) {
	c.latest.Store(dl)
	c.dirty.Store(true)
}

// tick composites one frame if anything changed.
func (c *compositor) tick() bool {
	dl := c.latest.Load()
	if dl == nil || c.handler == nil {
		return false
	}
	view := c.handler.GetViewRect(c.browser)
	w, h := view.Width, view.Height
	if w <= 0 || h <= 0 {
		return false
	}
	if !c.dirty.Swap(false) && w == c.width && h == c.height {
		return false
	}
	img := rasterize(dl, w, h)
	need := w * h * 4
	if cap(c.buf) < need {
		c.buf = make([]byte, need)
	}
	frame := c.buf[:need]
	toBGRA(img, frame)
	c.width, c.height = w, h
	c.frames.Add(1)
	c.handler.OnPaint(c.browser, core.PaintView, []core.Rect{{Width: w, Height: h}}, frame, w, h)
	return true
}

func (c *compositor) shutdown() {
	select {
	case <-c.stop:
		return
	default:
		close(c.stop)
	}
	if c.started.Load() {
		<-c.done
	}
}
