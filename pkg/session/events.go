package session

// EventHandler receives notifications from a Loop. Methods are called
// synchronously from the goroutine running the loop and must not block.
type EventHandler interface {
	// OnStateChange is called after every lifecycle transition.
	OnStateChange(previous, current State)

	// OnUnexpectedCommand is called for a decoded token that is neither TIC
	// nor STOP.
	OnUnexpectedCommand(token string, frame []byte)

	// OnMalformedFrame is called when a request frame cannot be decoded.
	OnMalformedFrame(frame []byte, err error)
}

// NoopEventHandler ignores every event. Embed it to implement only the
// methods you need.
type NoopEventHandler struct{}

func (NoopEventHandler) OnStateChange(previous, current State)          {}
func (NoopEventHandler) OnUnexpectedCommand(token string, frame []byte) {}
func (NoopEventHandler) OnMalformedFrame(frame []byte, err error)       {}
