package exchange

import (
	"encoding/binary"
	"fmt"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/muurk/pqcoap/internal/target"
	"github.com/muurk/pqcoap/internal/transport"
)

// MaxOptionLength is the longest Uri-Path or Uri-Query option value.
const MaxOptionLength = 255

// buildOptions converts the URI into its request options. Uri-Port is only
// added when the URI names a non-default port. Hosts are numeric literals
// and never produce Uri-Host.
func buildOptions(d target.Descriptor) (*transport.OptionList, error) {
	opts := transport.NewOptionList()

	if d.ExplicitPort() && d.Port() != d.Scheme().DefaultPort() {
		opts.Add(message.URIPort, encodeUint(uint32(d.Port())))
	}

	for _, segment := range d.PathSegments() {
		if len(segment) > MaxOptionLength {
			return opts, fmt.Errorf("path segment of %d bytes exceeds %d", len(segment), MaxOptionLength)
		}
		opts.Add(message.URIPath, []byte(segment))
	}
	for _, segment := range d.QuerySegments() {
		if len(segment) > MaxOptionLength {
			return opts, fmt.Errorf("query segment of %d bytes exceeds %d", len(segment), MaxOptionLength)
		}
		opts.Add(message.URIQuery, []byte(segment))
	}
	return opts, nil
}

// encodeUint encodes v in the minimal number of bytes, zero as empty.
func encodeUint(v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	i := 0
	for i < len(buf) && buf[i] == 0 {
		i++
	}
	return append([]byte(nil), buf[i:]...)
}

// newRequest creates a GET request with a fresh message ID. Multicast
// requests are non-confirmable.
func newRequest(sess transport.Session, multicast bool) *transport.Message {
	typ := message.Confirmable
	if multicast {
		typ = message.NonConfirmable
	}
	return &transport.Message{
		Type:      typ,
		Code:      codes.GET,
		MessageID: sess.NewMessageID(),
	}
}
