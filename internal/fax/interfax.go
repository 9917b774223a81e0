package fax

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"cliniq/internal/secrets"
)

// InterFAXClient sends outbound faxes through the InterFAX REST API.
type InterFAXClient struct {
	apiURL     string
	httpClient *http.Client
}

func NewInterFAXClient(apiURL string) *InterFAXClient {
	return &InterFAXClient{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *InterFAXClient) Send(ctx context.Context, creds secrets.Credentials, faxNumber string, document []byte, coverText string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="mado.pdf"`)
	header.Set("Content-Type", "application/pdf")
	filePart, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to build fax request: %w", err)
	}
	if _, err := filePart.Write(document); err != nil {
		return "", fmt.Errorf("failed to build fax request: %w", err)
	}

	if err := writer.WriteField("faxNumber", faxNumber); err != nil {
		return "", fmt.Errorf("failed to build fax request: %w", err)
	}
	if err := writer.WriteField("coverText", coverText); err != nil {
		return "", fmt.Errorf("failed to build fax request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build fax request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build fax request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetBasicAuth(creds.User, creds.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &TransmissionError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", &TransmissionError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransmissionError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}

	return extractJobID(respBody), nil
}

// extractJobID pulls the job identifier out of the provider response. The
// field name varies across InterFAX API versions.
func extractJobID(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, key := range []string{"id", "jobId", "faxJobId"} {
		if v, ok := payload[key]; ok {
			switch id := v.(type) {
			case string:
				if id != "" {
					return id
				}
			case float64:
				return fmt.Sprintf("%.0f", id)
			}
		}
	}
	return ""
}
