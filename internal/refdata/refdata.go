// Package refdata provides read-only reference data for form generation:
// the fillable template, the canonical-name to PDF-field mapping, and the
// region to fax-recipient table.
package refdata

import "context"

// Recipient is one entry of the region-to-fax routing table. Region ids are
// not guaranteed unique; lookups take the first match in table order.
type Recipient struct {
	RegionID string `json:"region_id"`
	Name     string `json:"name,omitempty"`
	FaxMado  string `json:"fax_mado"`
}

// Repository serves reference data. Implementations may read flat files or
// a real store; callers do not care.
type Repository interface {
	// Template returns the fillable form template bytes.
	Template(ctx context.Context) ([]byte, error)

	// FieldMap returns the canonical-name to PDF-field-id mapping. A missing
	// mapping yields an empty map, not an error; filling then proceeds with
	// no fields set.
	FieldMap(ctx context.Context) (map[string]string, error)

	// Recipients returns the ordered recipient table. A missing table yields
	// an empty slice.
	Recipients(ctx context.Context) ([]Recipient, error)
}
