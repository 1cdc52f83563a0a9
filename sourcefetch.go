package offscreen

import (
	"github.com/cryguy/offscreen/internal/core"
)

// SourceFetchBridge turns the engine's asynchronous source callback into a
// pollable slot. Requests are not correlated: any callback overwrites it.
type SourceFetchBridge struct {
	value slot[string]
}

func newSourceFetchBridge() *SourceFetchBridge { return &SourceFetchBridge{} }

// RequestSource clears readiness and asks frame for its serialized document.
func (b *SourceFetchBridge) RequestSource(frame core.Frame) {
	b.value.Take()
	frame.GetSource(b)
}

// Visit receives the source from the engine.
func (b *SourceFetchBridge) Visit(content string) { b.value.Store(content) }

func (b *SourceFetchBridge) CheckReady() bool {
	_, ok := b.value.Peek()
	return ok
}

// GetValue returns the stored source and clears readiness.
func (b *SourceFetchBridge) GetValue() string {
	v, _ := b.value.Take()
	return v
}
