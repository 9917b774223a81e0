// Package mado implements the disease-notification draft lifecycle:
// generating a filled notification form from clinical data, persisting the
// draft, and dispatching it by fax, email, or manual handling.
package mado

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a draft. A draft is created as
// StatusDraft and transitions exactly once per dispatch attempt to one of
// the other states. StatusSendFailed is retryable; the others are terminal.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusManualReady Status = "manual_ready"
	StatusSent        Status = "sent"
	StatusSendFailed  Status = "send_failed"
)

const (
	TransportFax    = "fax"
	TransportManual = "manual"
	TransportEmail  = "email"
)

var (
	// ErrDraftNotFound means no metadata record exists for the draft id.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrNoRecipient means dispatch has no fax destination for the draft's
	// region. Not an error at generation time; a hard precondition failure
	// at dispatch time.
	ErrNoRecipient = errors.New("recipient fax not configured for this region")

	// ErrNoRecipientEmail means an email dispatch carried no destination
	// address.
	ErrNoRecipientEmail = errors.New("recipient email address not provided")

	// ErrMissingCredentials means the transmission credentials could not be
	// retrieved from the secret store.
	ErrMissingCredentials = errors.New("fax credentials not available in secret store")
)

// DraftMetadata describes one generated draft. The metadata store is the
// sole authority for Status; the filled document itself is immutable once
// written.
type DraftMetadata struct {
	ID            string     `json:"id"`
	EncounterID   string     `json:"encounter_id"`
	PatientHash   string     `json:"patient_hash"`
	Disease       string     `json:"disease"`
	RegionID      string     `json:"region_id"`
	RecipientFax  string     `json:"recipient_fax,omitempty"`
	Transport     string     `json:"transport"`
	Status        Status     `json:"status"`
	StorageKey    string     `json:"s3_key"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	ProviderJobID string     `json:"provider_job_id,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	SentBy        string     `json:"sent_by,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// Canonical field names of the provincial notification form.
const (
	FieldPatientName           = "nom_prenoms_patient"
	FieldDateOfBirth           = "date_de_naissance"
	FieldAddress               = "adresse"
	FieldPhone                 = "telephone"
	FieldHealthInsuranceNumber = "numero_assurance_maladie"
	FieldClinician             = "nom_clinicien_declarant_et_coordonnees"
	FieldDiseaseName           = "nom_de_la_MADO"
	FieldDeclarationDate       = "date_declaration"
)
