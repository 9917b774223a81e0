// Package mailer sends documents as email attachments.
package mailer

import "context"

// Mailer sends a document to a recipient and returns the provider's message
// identifier.
type Mailer interface {
	SendDocument(ctx context.Context, to, subject, bodyText string, document []byte, filename string) (string, error)
}
