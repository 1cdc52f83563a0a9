//go:build !v8 && !goja

package offscreen

import (
	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/quickjs"
)

func defaultRuntime() core.RuntimeFactory {
	return quickjs.New
}
