package failure

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConfig            Kind = "config"
	KindNetwork           Kind = "network"
	KindMalformedResponse Kind = "malformed_response"
	KindClassification    Kind = "classification"
	KindSubmission        Kind = "submission"
	KindPolicy            Kind = "policy"
	KindInvalid           Kind = "invalid"
	KindUnknown           Kind = "unknown"
)

// Error is a failure of one unit of work (a feed cycle, a record, a hit or an
// enrichment request) tagged with the kind the caller uses to decide between
// skip-and-log and abort.
type Error struct {
	Kind  Kind
	Op    string
	Value string
	Err   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Op)
	if e.Value != "" {
		msg += fmt.Sprintf(" (%s)", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op, value string, err error) *Error {
	return &Error{Kind: kind, Op: op, Value: value, Err: err}
}

func Config(op string, err error) *Error {
	return New(KindConfig, op, "", err)
}

func Network(op, value string, err error) *Error {
	return New(KindNetwork, op, value, err)
}

func Malformed(op, value string, err error) *Error {
	return New(KindMalformedResponse, op, value, err)
}

func Classification(op, value string, err error) *Error {
	return New(KindClassification, op, value, err)
}

func Submission(op, value string, err error) *Error {
	return New(KindSubmission, op, value, err)
}

func Policy(op, value string, err error) *Error {
	return New(KindPolicy, op, value, err)
}

func Invalid(op, value string, err error) *Error {
	return New(KindInvalid, op, value, err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
