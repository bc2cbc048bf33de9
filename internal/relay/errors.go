package relay

import (
	"fmt"
	"strings"
)

// DecodeError means a message body could not be turned into a Document.
type DecodeError struct {
	Encoding string
	Reason   string
	Err      error
}

func (e *DecodeError) Error() string {
	msg := "decode failed"
	if e.Encoding != "" {
		msg += " (" + e.Encoding + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnknownEventTypeError means a sub-event matched no recognized shape.
type UnknownEventTypeError struct {
	Collection string
	Index      int
	Keys       []string
}

func (e *UnknownEventTypeError) Error() string {
	where := "sub-event"
	if e.Collection != "" {
		where = fmt.Sprintf("%s[%d]", e.Collection, e.Index)
	}
	return fmt.Sprintf("undefined source event type at %s (attributes: [%s])", where, strings.Join(e.Keys, ", "))
}

// MappingError wraps any other failure while mapping a sub-event.
type MappingError struct {
	Collection string
	Index      int
	Err        error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s[%d] failed: %v", e.Collection, e.Index, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// PublishError means a message group was not fully accepted by the stream.
type PublishError struct {
	MessageID string
	Stream    string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish of message %s to stream %s failed: %v", e.MessageID, e.Stream, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
