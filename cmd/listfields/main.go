// listfields prints every interactive form field of a PDF template, for
// deriving the canonical-name to field-id mapping offline. The template may
// be a local file or an http(s) URL.
//
// Usage:
//
//	listfields <path-or-url>
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"cliniq/internal/pdfform"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: listfields <pdf-path-or-url>")
		os.Exit(1)
	}

	document, err := loadTemplate(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load template: %v\n", err)
		os.Exit(1)
	}

	fields, err := pdfform.ListFields(bytes.NewReader(document))
	if err != nil {
		if errors.Is(err, pdfform.ErrNoAcroForm) {
			fmt.Println("No AcroForm fields found. The PDF may use XFA forms;")
			fmt.Println("inspect it in a PDF editor or convert it to AcroForm.")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "failed to list fields: %v\n", err)
		os.Exit(1)
	}

	for _, field := range fields {
		fmt.Printf("FIELD: name=%s type=%s\n", field.Name, field.Type)
	}
}

func loadTemplate(source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Get(source)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return io.ReadAll(resp.Body)
	}

	return os.ReadFile(source)
}
