package errors

import (
	"errors"
	"fmt"
)

// ErrorDump flattens an error for structured logs.
type ErrorDump struct {
	TopMessage     string   `json:"top_message"`
	Code           Code     `json:"code,omitempty"`
	Chain          []string `json:"chain,omitempty"`
	UpstreamStatus int      `json:"upstream_status,omitempty"`
	// Details are logged even for codes that keep them out of the response body.
	Details any `json:"details,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.UpstreamStatus = te.UpstreamStatus()
		d.Details = te.Details()
	}

	// Wrappers that add no text of their own are skipped.
	last := ""
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if msg == last {
			continue
		}
		last = msg
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %s", e, msg))
	}

	return d
}
