//go:build v8

package headless

import "github.com/cryguy/offscreen/internal/v8engine"

var testRuntime = v8engine.New
