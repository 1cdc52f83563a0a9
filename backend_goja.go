//go:build goja

package offscreen

import (
	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/gojaengine"
)

func defaultRuntime() core.RuntimeFactory {
	return gojaengine.New
}
