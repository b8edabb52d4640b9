// Package exchange implements the request/response lifecycle of a single
// CoAP exchange.
//
// A run walks a fixed sequence of stages:
//
//	parse -> connectivity -> address -> context -> session -> request -> send -> wait
//
// Each stage failure is classified as a parse, setup, transport or timeout
// failure and attributed to the stage it happened in. Whatever the exit
// path, the run's resources (pending option list, session, library context,
// network link) are released exactly once, in that order, before Run
// returns.
//
// The wait stage drives the transport's bounded event-processing primitive
// in fixed slices until a response is recorded or the cumulative elapsed
// time reaches the wait budget (whole seconds of leisure plus one second).
// Multicast exchanges ignore the budget and wait until the caller's context
// ends.
//
// Basic usage:
//
//	c, err := exchange.New(exchange.Options{
//	    Transport: transport.NewGoCoap(transport.GoCoapOptions{Blockwise: true}),
//	    Link:      connectivity.NewHost("", true),
//	    Retry:     connectivity.DefaultPolicy(),
//	})
//	if err != nil {
//	    return err
//	}
//	out := c.Run(ctx, "coap://127.0.0.1/hello")
//	if out.Status == exchange.StatusSuccess {
//	    fmt.Println(string(out.Payload()))
//	}
package exchange
