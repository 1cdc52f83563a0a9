package offscreen

import (
	"sync"
	"sync/atomic"

	"github.com/cryguy/offscreen/internal/core"
)

// RenderSurface receives paints from engine goroutines and presents them
// into the host buffer on the host thread. The host buffer is written only
// by present, so a frame is never visible half-copied between steps.
type RenderSurface struct {
	mu      sync.Mutex
	width   int
	height  int
	buf     []byte
	staging []byte
	pending bool

	newPaint edgeFlag
	cursor   atomic.Int32
	paints   atomic.Int64

	metrics *metrics
}

func newRenderSurface(width, height int, buf []byte, m *metrics) *RenderSurface {
	return &RenderSurface{width: width, height: height, buf: buf, metrics: m}
}

// MaxDimension bounds each side of the viewport so a frame size always fits
// in an int.
const MaxDimension = 16384

func validViewport(w, h int) bool {
	return w > 0 && h > 0 && w <= MaxDimension && h <= MaxDimension
}

// frameBytes is the BGRA byte size of a w by h frame. Callers check
// validViewport first.
func frameBytes(w, h int) int { return w * h * 4 }

// GetViewRect reports the current logical viewport.
func (s *RenderSurface) GetViewRect(core.Browser) core.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Rect{Width: s.width, Height: s.height}
}

// OnPaint stages a view frame. It may run on any goroutine.
func (s *RenderSurface) OnPaint(_ core.Browser, kind core.PaintElementType, _ []core.Rect, data []byte, width, height int) {
	s.paints.Add(1)
	s.metrics.paints.Inc()
	if kind != core.PaintView {
		s.drop(dropPopup)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if width != s.width || height != s.height || s.buf == nil {
		s.drop(dropSize)
		return
	}
	n := frameBytes(width, height)
	if n > len(s.buf) {
		s.drop(dropOverflow)
		return
	}
	if len(data) < n {
		s.drop(dropShort)
		return
	}
	if cap(s.staging) < n {
		s.staging = make([]byte, n)
	}
	s.staging = s.staging[:n]
	copy(s.staging, data[:n])
	s.pending = true
}

func (s *RenderSurface) drop(reason string) {
	s.metrics.paintsDropped.WithLabelValues(reason).Inc()
}

// present copies the staged frame into the host buffer. Host thread only.
func (s *RenderSurface) present() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		return false
	}
	copy(s.buf, s.staging)
	s.pending = false
	s.newPaint.set()
	s.metrics.framesPresented.Inc()
	return true
}

// HasNewPaint reports whether a frame was presented since the last call.
func (s *RenderSurface) HasNewPaint() bool { return s.newPaint.consume() }

// Resize swaps the viewport and, when buf is non-nil, the host buffer.
// A frame staged at the old size is discarded.
func (s *RenderSurface) Resize(width, height int, buf []byte) error {
	if !validViewport(width, height) {
		return ErrInvalidViewport
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if buf == nil {
		buf = s.buf
	}
	if len(buf) < frameBytes(width, height) {
		return ErrBufferTooSmall
	}
	s.width, s.height, s.buf = width, height, buf
	s.pending = false
	return nil
}

// release drops the host buffer. Later paints are discarded.
func (s *RenderSurface) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf, s.staging = nil, nil
	s.pending = false
}

// Viewport returns the current width and height.
func (s *RenderSurface) Viewport() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *RenderSurface) OnCursorChange(_ core.Browser, cursor core.CursorType) {
	s.cursor.Store(int32(cursor))
}

// Cursor returns the most recently requested cursor.
func (s *RenderSurface) Cursor() core.CursorType { return core.CursorType(s.cursor.Load()) }

// PaintCount counts every paint callback, accepted or not.
func (s *RenderSurface) PaintCount() int { return int(s.paints.Load()) }
