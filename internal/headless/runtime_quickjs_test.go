//go:build !v8 && !goja

package headless

import "github.com/cryguy/offscreen/internal/quickjs"

var testRuntime = quickjs.New
