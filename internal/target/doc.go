// Package target parses CoAP target URIs into immutable descriptors.
//
// Supported schemes:
//
//	coap://host[:port]/path?query       CoAP over UDP (default port 5683)
//	coap+tcp://host[:port]/path?query   CoAP over TCP (default port 5683)
//	coaps://host[:port]/path?query      CoAP over DTLS (default port 5684)
//	coaps+tcp://host[:port]/path?query  CoAP over TLS (default port 5684)
//
// A descriptor is parsed once and never mutated afterwards. The scheme and
// the port always agree on whether a secure session is requested: when the
// URI omits the port, the secured schemes get the secured default.
package target
