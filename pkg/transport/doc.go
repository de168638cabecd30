// Package transport carries whole frames between a requester and a
// responder in strict request-reply alternation.
//
// A responder binds one [Endpoint] and loops over Receive and Send. Every
// Receive must be answered by exactly one Send before the next Receive;
// violations return [ErrReplyPending] or [ErrNoRequest]. Requests from all
// connected peers are queued fairly into the single endpoint, and each peer
// has at most one request in flight.
//
// On the wire each frame is a 4-byte big-endian length followed by the
// frame bytes. Frame contents are opaque to this package.
//
//	ep, err := transport.NewTCPBinder(transport.DefaultTCPConfig()).Bind(ctx, "tcp://*:5555")
//	req, err := ep.Receive(ctx)
//	err = ep.Send(ctx, reply)
//
// The client side is [Requester].
package transport
