package channel

import (
	"context"

	"chatrelay/pkg/bus"
)

// Handler processes one inbound channel message and returns an outbound reply.
type Handler func(context.Context, bus.InboundMessage) bus.OutboundMessage

// Adapter bridges one external transport (for example Telegram) into chatrelay.
type Adapter interface {
	Name() string
	Run(context.Context, Handler) error
}
