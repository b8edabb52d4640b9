package transport

import (
	"errors"
	"fmt"
	"slices"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
)

var (
	// ErrOptionListReleased is returned when a released list is attached.
	ErrOptionListReleased = errors.New("option list already released")
	// ErrOptionListAttached is returned when a list is attached twice.
	ErrOptionListAttached = errors.New("option list already attached")
	// ErrMessageTooLarge is returned when a message exceeds the session's
	// maximum PDU size.
	ErrMessageTooLarge = errors.New("message exceeds maximum PDU size")
)

// Message is a CoAP message in transport-neutral form.
type Message struct {
	Type      message.Type
	Code      codes.Code
	MessageID uint16
	Token     message.Token
	Options   message.Options
	Payload   []byte
}

// Path returns the Uri-Path options of the message joined with '/'.
func (m *Message) Path() string {
	if m == nil {
		return ""
	}
	path := ""
	for _, opt := range m.Options {
		if opt.ID == message.URIPath {
			path += "/" + string(opt.Value)
		}
	}
	if path == "" {
		return "/"
	}
	return path
}

// EncodedSize estimates the size of the message on the wire using the
// datagram header layout.
func (m *Message) EncodedSize() int {
	size := 4 + len(m.Token)
	var prev message.OptionID
	for _, opt := range m.Options {
		size += 1 + extendedLen(int(opt.ID-prev)) + extendedLen(len(opt.Value)) + len(opt.Value)
		prev = opt.ID
	}
	if len(m.Payload) > 0 {
		size += 1 + len(m.Payload)
	}
	return size
}

func extendedLen(v int) int {
	switch {
	case v < 13:
		return 0
	case v < 269:
		return 1
	default:
		return 2
	}
}

// AttachOptions moves the list into the message. The options are stably
// sorted by number so repeated options keep their relative order. maxPDU of
// zero disables the size check.
func (m *Message) AttachOptions(l *OptionList, maxPDU int) error {
	switch {
	case l == nil:
		return nil
	case l.released:
		return ErrOptionListReleased
	case l.attached:
		return ErrOptionListAttached
	}

	candidate := *m
	candidate.Options = append(slices.Clone(m.Options), l.opts...)
	slices.SortStableFunc(candidate.Options, func(a, b message.Option) int {
		return int(a.ID) - int(b.ID)
	})
	if maxPDU > 0 {
		if size := candidate.EncodedSize(); size > maxPDU {
			return fmt.Errorf("%w: %d > %d bytes", ErrMessageTooLarge, size, maxPDU)
		}
	}

	m.Options = candidate.Options
	l.attached = true
	l.opts = nil
	return nil
}

// OptionList is a pending request option list.
type OptionList struct {
	opts     message.Options
	attached bool
	released bool
}

// NewOptionList returns an empty pending option list.
func NewOptionList() *OptionList {
	return &OptionList{}
}

// Add appends an option to the pending list.
func (l *OptionList) Add(id message.OptionID, value []byte) {
	l.opts = append(l.opts, message.Option{ID: id, Value: slices.Clone(value)})
}

// Len returns the number of pending options.
func (l *OptionList) Len() int {
	return len(l.opts)
}

// Options returns a copy of the pending options in insertion order.
func (l *OptionList) Options() message.Options {
	return slices.Clone(l.opts)
}

// Attached reports whether ownership moved into a message.
func (l *OptionList) Attached() bool {
	return l.attached
}

// Released reports whether the list was released by its owner.
func (l *OptionList) Released() bool {
	return l.released
}

// Release frees a list that was never attached. It reports whether this call
// performed the release; attached or already released lists are left alone.
func (l *OptionList) Release() bool {
	if l == nil || l.attached || l.released {
		return false
	}
	l.released = true
	l.opts = nil
	return true
}
