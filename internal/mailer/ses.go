package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/textproto"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESMailer sends raw MIME email through Amazon SES.
type SESMailer struct {
	client *sesv2.Client
	sender string
}

func NewSESMailer(region, sender string) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESMailer{
		client: sesv2.NewFromConfig(cfg),
		sender: sender,
	}, nil
}

func (m *SESMailer) SendDocument(ctx context.Context, to, subject, bodyText string, document []byte, filename string) (string, error) {
	raw, err := buildRawMessage(m.sender, to, subject, bodyText, document, filename)
	if err != nil {
		return "", err
	}

	resp, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.sender),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	messageID := ""
	if resp.MessageId != nil {
		messageID = *resp.MessageId
	}
	return messageID, nil
}

// buildRawMessage assembles a multipart/mixed MIME message with a plain-text
// body and one PDF attachment. SES raw mode requires the exact bytes.
func buildRawMessage(from, to, subject, bodyText string, document []byte, filename string) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	textPart, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to build email body: %w", err)
	}
	if _, err := textPart.Write([]byte(bodyText)); err != nil {
		return nil, fmt.Errorf("failed to build email body: %w", err)
	}

	attachmentHeader := textproto.MIMEHeader{}
	attachmentHeader.Set("Content-Type", "application/pdf")
	attachmentHeader.Set("Content-Transfer-Encoding", "base64")
	attachmentHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	attachmentPart, err := writer.CreatePart(attachmentHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to build email attachment: %w", err)
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(document)))
	base64.StdEncoding.Encode(encoded, document)
	for len(encoded) > 0 {
		line := encoded
		if len(line) > 76 {
			line = line[:76]
		}
		if _, err := attachmentPart.Write(line); err != nil {
			return nil, fmt.Errorf("failed to build email attachment: %w", err)
		}
		if _, err := attachmentPart.Write([]byte("\r\n")); err != nil {
			return nil, fmt.Errorf("failed to build email attachment: %w", err)
		}
		encoded = encoded[len(line):]
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize email message: %w", err)
	}

	return buf.Bytes(), nil
}
