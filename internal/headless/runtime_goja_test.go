//go:build goja

package headless

import "github.com/cryguy/offscreen/internal/gojaengine"

var testRuntime = gojaengine.New
