package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Settings configure an Engine for the life of the process.
type Settings struct {
	// WindowlessRendering must be set; the engine never opens a window.
	WindowlessRendering bool
	// MultiThreadedMessageLoop must be false. Engine work only advances
	// inside DoMessageLoopWork.
	MultiThreadedMessageLoop bool
	// SingleProcess runs document scripts inline on the message loop.
	SingleProcess bool

	CachePath           string
	UserAgent           string
	AcceptLanguage      string
	RemoteDebuggingPort int

	MemoryLimitMB    int
	ScriptTimeout    time.Duration
	NetworkTimeout   time.Duration
	MaxResponseBytes int64
	MaxTasksPerStep  int

	NewRuntime RuntimeFactory
	Logger     *zap.Logger
	// Metrics is served by the remote debugging endpoint when set.
	Metrics prometheus.Gatherer
	// Console receives console.* output from documents. May be nil.
	Console func(browserID int, entry LogEntry)
}

// BrowserSettings configure one browser.
type BrowserSettings struct {
	WindowlessFrameRate int
	// BackgroundColor is ARGB. Alpha 0 keeps the page background transparent
	// where the document does not paint.
	BackgroundColor uint32
}

// LogEntry is a single console.log/warn/error captured from a document.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// MaxLogMessageSize caps one console message.
const MaxLogMessageSize = 4096
