// Package webapi installs the browser globals a document's scripts run
// against: window, document, location, console, timers, storage and input
// event dispatch. Every setup function targets core.JSRuntime, so the same
// environment runs on each script backend.
package webapi

import (
	"fmt"

	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/eventloop"
)

// Page is the document a script context is bound to. Its methods are only
// called from the goroutine that owns the context.
type Page interface {
	URL() string
	FrameRate() int
	UserAgent() string
	Language() string
	ReadyState() string

	Title() string
	SetTitle(title string)
	Serialize() string

	// Query returns element handles matching selector under root. Root 0 is
	// the document.
	Query(selector string, root int, all bool) []int
	Tag(handle int) string
	Parent(handle int) int
	Text(handle int) string
	SetText(handle int, text string)
	InnerHTML(handle int) string
	SetInnerHTML(handle int, markup string) error
	Attr(handle int, name string) (string, bool)
	SetAttr(handle int, name, value string)
	RemoveAttr(handle int, name string)

	Navigate(url string)
	HistoryGo(delta int)
	Reload()

	Console(level, message string)
	// Storage returns the origin's persistent store, or nil when the page
	// has no origin.
	Storage() Storage
}

// SetupFunc installs one group of globals.
type SetupFunc func(rt core.JSRuntime, el *eventloop.EventLoop, page Page) error

// DocumentSetup is the full environment, in installation order.
var DocumentSetup = []SetupFunc{
	SetupGlobals,
	SetupConsole,
	SetupEncoding,
	SetupTimers,
	SetupDocument,
	SetupEvents,
	SetupStorage,
}

// Install runs setups in order and stops at the first failure.
func Install(rt core.JSRuntime, el *eventloop.EventLoop, page Page, setups ...SetupFunc) error {
	if len(setups) == 0 {
		setups = DocumentSetup
	}
	for i, setup := range setups {
		if err := setup(rt, el, page); err != nil {
			return fmt.Errorf("document setup %d: %w", i, err)
		}
	}
	return nil
}
