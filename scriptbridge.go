package offscreen

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cryguy/offscreen/internal/core"
)

// transferHook is the global the binding wrapper calls into.
const transferHook = "__offscreenTransfer"

// ScriptBridge installs the transfer binding into every document and holds
// the last value a page handed over.
type ScriptBridge struct {
	name    string
	value   slot[string]
	log     *zap.Logger
	metrics *metrics
}

func newScriptBridge(name string, log *zap.Logger, m *metrics) *ScriptBridge {
	return &ScriptBridge{name: name, log: log, metrics: m}
}

// OnContextCreated registers the binding. It runs before page scripts on
// the goroutine that owns the context.
func (b *ScriptBridge) OnContextCreated(_ core.Browser, _ core.Frame, rt core.JSRuntime) {
	if err := b.install(rt); err != nil {
		b.log.Warn("transfer binding not installed", zap.String("name", b.name), zap.Error(err))
	}
}

func (b *ScriptBridge) install(rt core.JSRuntime) error {
	err := rt.RegisterFunc(transferHook, func(v string) int {
		b.value.Store(v)
		b.metrics.transfers.Inc()
		return 1
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", transferHook, err)
	}
	return rt.Eval(fmt.Sprintf(`(function () {
	var hook = globalThis.%s;
	globalThis[%s] = function (value) {
		return hook(arguments.length ? String(value) : "") === 1;
	};
})();`, transferHook, core.JsEscape(b.name)))
}

// HasTransfer reports whether a value is waiting.
func (b *ScriptBridge) HasTransfer() bool {
	_, ok := b.value.Peek()
	return ok
}

// GetTransfer returns the last value and clears readiness.
func (b *ScriptBridge) GetTransfer() string {
	v, _ := b.value.Take()
	return v
}

func (b *ScriptBridge) ResetTransfer() { b.value.Reset() }
