package errors

import (
	"errors"
	"fmt"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	FaultType    string `json:"fault_type,omitempty"`
	FaultMessage string `json:"fault_message,omitempty"`
}

// FaultCarrier is implemented by errors that wrap a commerce API fault payload.
type FaultCarrier interface {
	FaultType() string
	FaultMessage() string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var carrier FaultCarrier
	if errors.As(err, &carrier) {
		d.FaultType = carrier.FaultType()
		d.FaultMessage = carrier.FaultMessage()
	}

	return d
}
