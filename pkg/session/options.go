package session

import "github.com/bft-labs/tictoc/pkg/log"

// Option configures optional behavior of a Loop.
type Option func(*options)

type options struct {
	logger       log.Logger
	eventHandler EventHandler
}

func defaultOptions() options {
	return options{
		logger:       log.NewNoopLogger(),
		eventHandler: NoopEventHandler{},
	}
}

// WithLogger sets the logger. If not provided, nothing is logged.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventHandler sets a handler for loop events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		if handler != nil {
			o.eventHandler = handler
		}
	}
}
