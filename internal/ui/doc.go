// Package ui renders the terminal output of the pqcoap CLI.
//
// Output is printed once and never redrawn. A Runner prints a banner, one
// line per finished exchange stage with its elapsed time and an outcome
// marker, a stage summary bar, and a final Report. Reports colour response
// codes by class, carry the negotiated key-exchange group for secured
// sessions and show the payload as text or a hex dump.
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "CoAP GET",
//	    Command:   "pqcoap get",
//	    Params:    []ui.Detail{{Key: "Target", Value: uri}},
//	    StepNames: []string{"Parse target URI", "Bring up network"},
//	})
//
//	runner.Run(func(onStep ui.StepCallback) ui.Report {
//	    onStep(1, "", ui.StepRunning, "")
//	    // ...
//	    onStep(1, "", ui.StepComplete, "")
//	    return ui.Report{Type: ui.ResultSuccess, Code: "2.05 Content", Title: uri}
//	})
//
// zap logging stays silent unless PQCOAP_LOG_LEVEL is set, so log lines do
// not interleave with this output.
package ui
