// Package connectivity brings the network link up before an exchange and
// takes it down afterwards.
//
// A Provider abstracts the link (the host's existing network, or a Wi-Fi
// association through NetworkManager). The Orchestrator drives a Provider
// through a bounded number of connect attempts:
//
//	Idle -> Attempting -> Connected
//	             |  ^
//	             v  | (disconnect, wait retry delay)
//	          Attempting ... -> Exhausted
//
// Between failed attempts the link is disconnected and the orchestrator
// waits the retry delay; no delay follows the final attempt.
package connectivity
