package offscreen

import (
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/offscreen/internal/core"
)

func uniform(n int, v byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}

func isUniform(b []byte) bool {
	for _, c := range b {
		if c != b[0] {
			return false
		}
	}
	return true
}

func newTestSurface(w, h int) (*RenderSurface, []byte) {
	buf := make([]byte, w*h*4)
	return newRenderSurface(w, h, buf, newMetrics("test")), buf
}

func TestRenderSurface_PresentIsEdgeTriggered(t *testing.T) {
	s, buf := newTestSurface(4, 2)
	assert.False(t, s.present())
	assert.False(t, s.HasNewPaint())

	s.OnPaint(nil, core.PaintView, nil, uniform(32, 7), 4, 2)
	assert.Zero(t, buf[0], "paints never write the host buffer directly")
	require.True(t, s.present())
	assert.Equal(t, uniform(32, 7), buf)

	assert.True(t, s.HasNewPaint())
	assert.False(t, s.HasNewPaint())
	assert.False(t, s.present())
}

func TestRenderSurface_FramesAreNeverTorn(t *testing.T) {
	const w, h = 64, 48
	s, buf := newTestSurface(w, h)

	var wg sync.WaitGroup
	for p := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				s.OnPaint(nil, core.PaintView, nil, uniform(w*h*4, byte(p*50+i%50+1)), w, h)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		if s.present() && s.HasNewPaint() {
			require.Len(t, buf, w*h*4)
			require.True(t, isUniform(buf), "presented frame mixes two paints")
		}
		select {
		case <-done:
			s.present()
			assert.True(t, isUniform(buf))
			return
		default:
		}
	}
}

func TestRenderSurface_Drops(t *testing.T) {
	s, buf := newTestSurface(4, 2)
	s.OnPaint(nil, core.PaintPopup, nil, uniform(32, 1), 4, 2)
	s.OnPaint(nil, core.PaintView, nil, uniform(32, 2), 2, 4)
	s.OnPaint(nil, core.PaintView, nil, uniform(16, 3), 4, 2)

	assert.False(t, s.present())
	assert.Zero(t, buf[0])
	assert.Equal(t, 3, s.PaintCount())

	dropped := s.metrics.paintsDropped
	assert.Equal(t, 1.0, testutil.ToFloat64(dropped.WithLabelValues(dropPopup)))
	assert.Equal(t, 1.0, testutil.ToFloat64(dropped.WithLabelValues(dropSize)))
	assert.Equal(t, 1.0, testutil.ToFloat64(dropped.WithLabelValues(dropShort)))
}

func TestRenderSurface_LastWriteWins(t *testing.T) {
	s, buf := newTestSurface(2, 2)
	s.OnPaint(nil, core.PaintView, nil, uniform(16, 1), 2, 2)
	s.OnPaint(nil, core.PaintView, nil, uniform(16, 2), 2, 2)
	require.True(t, s.present())
	assert.Equal(t, uniform(16, 2), buf)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.framesPresented))
}

func TestRenderSurface_Resize(t *testing.T) {
	s, _ := newTestSurface(4, 4)

	assert.ErrorIs(t, s.Resize(0, 4, nil), ErrInvalidViewport)
	assert.ErrorIs(t, s.Resize(math.MaxInt32, math.MaxInt32, make([]byte, 16)), ErrInvalidViewport)
	assert.ErrorIs(t, s.Resize(4, MaxDimension+1, nil), ErrInvalidViewport)
	assert.ErrorIs(t, s.Resize(8, 8, nil), ErrBufferTooSmall)

	s.OnPaint(nil, core.PaintView, nil, uniform(64, 9), 4, 4)
	require.NoError(t, s.Resize(2, 2, nil))
	assert.False(t, s.present(), "a frame staged at the old size is discarded")
	assert.Equal(t, core.Rect{Width: 2, Height: 2}, s.GetViewRect(nil))

	bigger := make([]byte, 8*8*4)
	require.NoError(t, s.Resize(8, 8, bigger))
	s.OnPaint(nil, core.PaintView, nil, uniform(256, 5), 8, 8)
	require.True(t, s.present())
	assert.Equal(t, uniform(256, 5), bigger)
}

func TestRenderSurface_CursorLastWins(t *testing.T) {
	s, _ := newTestSurface(1, 1)
	assert.Equal(t, core.CursorPointer, s.Cursor())
	for _, c := range []core.CursorType{core.CursorHand, core.CursorWait, core.CursorIBeam} {
		s.OnCursorChange(nil, c)
	}
	assert.Equal(t, core.CursorIBeam, s.Cursor())
}
