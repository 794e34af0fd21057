package chat

import (
	"encoding/json"

	"ChatLink/tools/errs"
)

// HandlerFunc processes one inbound event from one connection.
type HandlerFunc func(c *Client, data json.RawMessage) error

// Dispatcher maps inbound event names to their handlers. Registration
// happens once at server construction; dispatch is read-only after that.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

func (d *Dispatcher) Register(event string, h HandlerFunc) {
	d.handlers[event] = h
}

func (d *Dispatcher) Dispatch(c *Client, f *Frame) error {
	h, ok := d.handlers[f.Event]
	if !ok {
		return errs.ErrValidation.WithDetail("unknown event: " + f.Event)
	}
	return h(c, f.Data)
}
