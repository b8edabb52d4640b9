// Package transport defines the contract between the exchange controller and
// the CoAP transport/security library, and provides the go-coap backed
// implementation of that contract.
//
// # Contract
//
// A Provider creates a library Context. A Context creates client Sessions
// bound to a resolved Endpoint and drives I/O through Process, a bounded
// event-processing primitive: each call waits at most the given slice for
// network activity, dispatches any received response to the handler that was
// registered with Session.Send, and reports how much time it consumed.
//
//	p := transport.NewGoCoap(transport.GoCoapOptions{})
//	tctx, _ := p.NewContext(ctx)
//	defer tctx.Close()
//
//	sess, _ := tctx.NewSession(ctx, transport.SessionParams{
//	    Proto:    transport.ProtoUDP,
//	    Endpoint: ep,
//	})
//	defer sess.Close()
//
//	_ = sess.Send(req, handler)
//	elapsed, err := tctx.Process(500 * time.Millisecond)
//
// # Endpoints
//
// Endpoint carries an explicit address family and socket-address structure
// size. Session creation fails deterministically when the size does not match
// what this platform's address structures expect, instead of truncating.
//
// # Option lists
//
// OptionList models the pending option list of a request. It is either
// attached to exactly one Message (ownership moves into the message) or
// released by its owner; both transitions happen at most once.
package transport
