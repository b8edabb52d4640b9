// Package discovery provides mDNS/DNS-SD discovery of CoAP services.
//
// The scanner browses "_coap._udp", "_coap._tcp", "_coaps._udp" and
// "_coaps._tcp" in the "local." domain. Each result carries a numeric
// address, so Service.URI() can be passed straight to the get command.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	services, err := scanner.Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, svc := range services {
//	    fmt.Println(svc.URI())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Services must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
