package analytics

import (
	"context"

	"munchykit/core"
)

// BridgeHook fans one event stream out to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

// EventSource is satisfied by engine.EventBus and engine.TrackerService.
type EventSource interface {
	SubscribeAll(handler func(context.Context, core.Event)) func()
}

// Attach forwards every event from src to h. It returns the unsubscribe func.
func Attach(src EventSource, h Hook) func() {
	return src.SubscribeAll(func(_ context.Context, e core.Event) { h.OnEvent(e) })
}
