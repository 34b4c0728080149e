// Package upstream holds the wire conventions shared by every backend the
// console talks to: a response envelope of the form {"data": ..., "cod": N}
// where cod 0 means success and any other value is a failure that may carry
// a message.
package upstream

import (
	"encoding/json"
	"fmt"
	"io"
)

// SuccessCode is the status sentinel every upstream envelope uses.
const SuccessCode = 0

// Envelope is the outer shape of every upstream response. Cod is a pointer
// so an envelope with no status field at all can be told apart from cod 0.
type Envelope struct {
	Cod      *int            `json:"cod"`
	Msg      string          `json:"msg,omitempty"`
	ErrorMsg string          `json:"error_msg,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope reads and decodes an envelope from r, failing with
// ErrMalformedResponse when the body is not an envelope at all.
func DecodeEnvelope(r io.Reader) (*Envelope, error) {
	var e Envelope
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &e, nil
}

// Err returns nil when the envelope reports success, a *StatusError when the
// status code is a failure, and ErrMalformedResponse when the status field
// is missing.
func (e *Envelope) Err() error {
	if e.Cod == nil {
		return fmt.Errorf("%w: missing status code", ErrMalformedResponse)
	}
	if *e.Cod == SuccessCode {
		return nil
	}
	return &StatusError{Code: *e.Cod, Message: e.Message()}
}

// Message returns whichever message field the upstream populated.
func (e *Envelope) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.ErrorMsg
}

// DecodeData unmarshals the envelope payload into v. An absent payload on a
// successful envelope is malformed when the caller expects one.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
