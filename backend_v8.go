//go:build v8

package offscreen

import (
	"github.com/cryguy/offscreen/internal/core"
	"github.com/cryguy/offscreen/internal/v8engine"
)

func defaultRuntime() core.RuntimeFactory {
	return v8engine.New
}
