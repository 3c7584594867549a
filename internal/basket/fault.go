package basket

import (
	"encoding/json"
	"fmt"
	"net/http"

	pkgerrors "github.com/harborlane/clienteling-core/pkg/errors"
	"github.com/harborlane/clienteling-core/pkg/types"
)

// Fault type identifiers the commerce API reports for a stale etag.
const (
	faultPreconditionFailed = "PreconditionFailedException"
	faultInvalidIfMatch     = "InvalidIfMatchException"
)

// Fault is the server fault payload attached to failed responses.
type Fault struct {
	Type      string         `json:"type"`
	Message   string         `json:"message,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// AddressSuggestion extracts the standardized-address candidate some
// verification faults carry in their arguments. Nil when the fault has no
// usable suggestion.
func (f Fault) AddressSuggestion() *types.AddressSuggestion {
	if len(f.Arguments) == 0 {
		return nil
	}
	raw, err := json.Marshal(f.Arguments)
	if err != nil {
		return nil
	}
	var suggestion types.AddressSuggestion
	if err := json.Unmarshal(raw, &suggestion); err != nil {
		return nil
	}
	if suggestion.Suggested.IsEmpty() {
		return nil
	}
	return &suggestion
}

// IsPrecondition reports whether the fault means the client's etag is stale.
func (f Fault) IsPrecondition() bool {
	return f.Type == faultPreconditionFailed || f.Type == faultInvalidIfMatch
}

// FaultError wraps a server fault as an error, keeping the payload intact
// for callers that surface it to the user.
type FaultError struct {
	Fault      Fault
	StatusCode int
}

func (e *FaultError) Error() string {
	if e.Fault.Message != "" {
		return fmt.Sprintf("%s: %s", e.Fault.Type, e.Fault.Message)
	}
	return fmt.Sprintf("%s (status %d)", e.Fault.Type, e.StatusCode)
}

// FaultType implements errors.FaultCarrier.
func (e *FaultError) FaultType() string { return e.Fault.Type }

// FaultMessage implements errors.FaultCarrier.
func (e *FaultError) FaultMessage() string { return e.Fault.Message }

// IsPreconditionFault reports whether err is a stale-etag failure, at either
// the fault-payload or domain-code level.
func IsPreconditionFault(err error) bool {
	if err == nil {
		return false
	}
	return pkgerrors.HasCode(err, pkgerrors.CodePrecondition)
}

type faultEnvelope struct {
	Fault *Fault `json:"fault,omitempty"`
}

// decodeFault converts a non-2xx response body into a typed domain error.
func decodeFault(status int, body []byte) error {
	var envelope faultEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Fault == nil {
		return pkgerrors.Wrap(domainCodeForStatus(status),
			&FaultError{Fault: Fault{Type: "UnknownException"}, StatusCode: status},
			fmt.Sprintf("commerce api returned status %d", status))
	}

	fault := *envelope.Fault
	cause := &FaultError{Fault: fault, StatusCode: status}

	code := domainCodeForStatus(status)
	if fault.IsPrecondition() {
		code = pkgerrors.CodePrecondition
	}
	message := fault.Message
	if message == "" {
		message = fault.Type
	}
	wrapped := pkgerrors.Wrap(code, cause, message)
	if suggestion := fault.AddressSuggestion(); suggestion != nil {
		wrapped = wrapped.WithDetails(map[string]any{"address_suggestion": suggestion})
	}
	return wrapped
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusPreconditionFailed:
		return pkgerrors.CodePrecondition
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}
