package offscreen

import (
	"sync"

	"github.com/cryguy/offscreen/internal/core"
)

// NavState is the coarse navigation state of the tracked browser.
type NavState int

const (
	Idle NavState = iota
	Loading
	Loaded
	CloseRequested
)

func (s NavState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case CloseRequested:
		return "close-requested"
	default:
		return "unknown"
	}
}

// NavigationSnapshot is a consistent copy of the tracker's fields.
type NavigationSnapshot struct {
	State          NavState
	IsLoaded       bool
	LastHTTPStatus int
	CanGoBack      bool
	CanGoForward   bool
	CloseAllowed   bool
	// LastError is set by a failed load and cleared by the next start.
	LastError core.ErrorCode
	ErrorText string
	FailedURL string
}

// NavigationStateTracker turns load and life-span callbacks into state the
// host can poll.
type NavigationStateTracker struct {
	mu        sync.RWMutex
	snap      NavigationSnapshot
	browserID int
	tracked   bool
	observer  func(NavigationSnapshot)
}

func newNavigationStateTracker(observer func(NavigationSnapshot)) *NavigationStateTracker {
	return &NavigationStateTracker{observer: observer}
}

// update applies fn under the lock and notifies the observer.
func (t *NavigationStateTracker) update(browser core.Browser, fn func(*NavigationSnapshot)) {
	t.mu.Lock()
	if t.tracked && browser != nil && browser.ID() != t.browserID {
		t.mu.Unlock()
		return
	}
	fn(&t.snap)
	snap := t.snap
	t.mu.Unlock()
	if t.observer != nil {
		t.observer(snap)
	}
}

func (t *NavigationStateTracker) enter(s *NavigationSnapshot, state NavState) {
	if s.State != CloseRequested {
		s.State = state
	}
}

func (t *NavigationStateTracker) OnAfterCreated(browser core.Browser) {
	t.mu.Lock()
	t.browserID, t.tracked = browser.ID(), true
	t.mu.Unlock()
}

func (t *NavigationStateTracker) OnLoadStart(browser core.Browser, _ core.Frame) {
	t.update(browser, func(s *NavigationSnapshot) {
		t.enter(s, Loading)
		s.IsLoaded = false
		s.LastHTTPStatus = 0
		s.LastError, s.ErrorText, s.FailedURL = core.ErrNone, "", ""
	})
}

func (t *NavigationStateTracker) OnLoadEnd(browser core.Browser, _ core.Frame, status int) {
	t.update(browser, func(s *NavigationSnapshot) {
		t.enter(s, Loaded)
		s.IsLoaded = true
		s.LastHTTPStatus = status
	})
}

func (t *NavigationStateTracker) OnLoadError(browser core.Browser, _ core.Frame, code core.ErrorCode, text, failedURL string) {
	t.update(browser, func(s *NavigationSnapshot) {
		t.enter(s, Loaded)
		s.IsLoaded = true
		s.LastHTTPStatus = code.HTTPStatus()
		s.LastError, s.ErrorText, s.FailedURL = code, text, failedURL
	})
}

func (t *NavigationStateTracker) OnLoadingStateChange(browser core.Browser, isLoading, canGoBack, canGoForward bool) {
	t.update(browser, func(s *NavigationSnapshot) {
		s.CanGoBack, s.CanGoForward = canGoBack, canGoForward
		s.IsLoaded = !isLoading
		if isLoading {
			t.enter(s, Loading)
		} else if s.State == Loading {
			t.enter(s, Loaded)
		}
	})
}

// DoClose allows the close and records it when the tracked browser asks.
func (t *NavigationStateTracker) DoClose(browser core.Browser) bool {
	t.mu.Lock()
	match := t.tracked && browser != nil && browser.ID() == t.browserID
	if match {
		t.snap.CloseAllowed = true
		t.snap.State = CloseRequested
	}
	snap := t.snap
	t.mu.Unlock()
	if match && t.observer != nil {
		t.observer(snap)
	}
	return false
}

func (t *NavigationStateTracker) OnBeforeClose(core.Browser) {}

// Snapshot returns the current fields.
func (t *NavigationStateTracker) Snapshot() NavigationSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

func (t *NavigationStateTracker) State() NavState { return t.Snapshot().State }

func (t *NavigationStateTracker) CloseAllowed() bool { return t.Snapshot().CloseAllowed }
