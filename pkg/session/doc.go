// Package session runs the responder side of the TIC/TOC control protocol.
//
// A Loop binds one transport endpoint, then receives one request at a time,
// decodes it as text and replies TOC to every request except the STOP
// sentinel, which ends the loop without a reply:
//
//	loop, err := session.New(session.DefaultConfig(), transport.NewTCPBinder(transport.DefaultTCPConfig()))
//	if err != nil {
//	    return err
//	}
//	if err := loop.Bind(ctx); err != nil {
//	    return err
//	}
//	return loop.Run(ctx)
//
// Unexpected commands are logged with a byte dump and reported through the
// EventHandler; they are never fatal.
package session
