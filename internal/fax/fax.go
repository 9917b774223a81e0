// Package fax transmits documents through an outbound fax provider.
package fax

import (
	"context"
	"fmt"

	"cliniq/internal/secrets"
)

// Sender sends a document to a fax destination and returns the provider's
// job identifier. An empty job id on success is allowed; callers assign a
// local identifier in that case.
type Sender interface {
	Send(ctx context.Context, creds secrets.Credentials, faxNumber string, document []byte, coverText string) (string, error)
}

// TransmissionError reports a failed provider call.
type TransmissionError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fax transmission failed: %v", e.Err)
	}
	return fmt.Sprintf("fax transmission failed: provider returned %d: %s", e.StatusCode, e.Message)
}

func (e *TransmissionError) Unwrap() error {
	return e.Err
}
