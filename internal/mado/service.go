package mado

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cliniq/internal/config"
	"cliniq/internal/fax"
	"cliniq/internal/mailer"
	"cliniq/internal/monitoring"
	"cliniq/internal/pdfform"
	"cliniq/internal/refdata"
	"cliniq/internal/secrets"
)

// Service drives the draft lifecycle: Generate creates a filled draft,
// Dispatch transitions it to manual_ready, sent, or send_failed.
type Service struct {
	logger    *slog.Logger
	store     *DraftStore
	refData   refdata.Repository
	secrets   secrets.Provider
	faxSender fax.Sender
	mailer    mailer.Mailer
	telemetry monitoring.Telemetry
	cfg       config.MadoConfig
	faxSecret string
}

func NewService(
	logger *slog.Logger,
	store *DraftStore,
	refData refdata.Repository,
	secretProvider secrets.Provider,
	faxSender fax.Sender,
	docMailer mailer.Mailer,
	telemetry monitoring.Telemetry,
	cfg config.MadoConfig,
	faxSecretName string,
) *Service {
	return &Service{
		logger:    logger,
		store:     store,
		refData:   refData,
		secrets:   secretProvider,
		faxSender: faxSender,
		mailer:    docMailer,
		telemetry: telemetry,
		cfg:       cfg,
		faxSecret: faxSecretName,
	}
}

type Patient struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	DOB      string `json:"dob"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	PHN      string `json:"phn"`
	RegionID string `json:"region_id" validate:"omitempty,region_code"`
}

type Extracted struct {
	ClinicianName string `json:"clinician_name"`
	ClinicianID   string `json:"clinician_id"`
	DiseaseName   string `json:"disease_name"`
}

type GenerateRequest struct {
	EncounterID string    `json:"encounter_id" validate:"required"`
	Patient     Patient   `json:"patient" validate:"required"`
	Extracted   Extracted `json:"extracted"`
	RegionID    string    `json:"region_id" validate:"omitempty,region_code"`
}

type GenerateResult struct {
	DraftID    string        `json:"draft_id"`
	PreviewURL string        `json:"preview_url"`
	Metadata   DraftMetadata `json:"metadata"`
}

type DispatchRequest struct {
	DraftID        string `json:"draft_id" validate:"required,uuid4"`
	ApproveBy      string `json:"approve_by" validate:"required"`
	Transport      string `json:"transport" validate:"required,oneof=fax manual email"`
	RecipientEmail string `json:"recipient_email" validate:"omitempty,email"`
}

type DispatchResult struct {
	DraftID       string `json:"draft_id"`
	Sent          bool   `json:"sent"`
	Transport     string `json:"transport,omitempty"`
	ProviderJobID string `json:"provider_job_id,omitempty"`
	DownloadURL   string `json:"download_url,omitempty"`
}

// Generate fills the notification form with the encounter's clinical data,
// stores the document and its metadata record with status draft, and
// returns a time-limited preview URL.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	draftID := uuid.New().String()

	regionID := req.RegionID
	if regionID == "" {
		regionID = req.Patient.RegionID
	}
	if regionID == "" {
		regionID = s.cfg.DefaultRegion
	}

	// A missing field map is not fatal: filling proceeds with no fields set
	// and the operator derives the mapping with the listfields tool.
	fieldMap, err := s.refData.FieldMap(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "field map unavailable, proceeding unmapped", "error", err)
		fieldMap = map[string]string{}
	}

	template, err := s.refData.Template(ctx)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("failed to load form template: %w", err)
	}

	now := time.Now().UTC()
	canonical := canonicalData(req, now)

	document, err := pdfform.Fill(template, fieldMap, canonical, false)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("PDF fill failed: %w", err)
	}

	if err := s.store.PutDocument(ctx, draftID, document); err != nil {
		return GenerateResult{}, err
	}

	meta := DraftMetadata{
		ID:          draftID,
		EncounterID: req.EncounterID,
		PatientHash: patientHash(req.Patient),
		Disease:     req.Extracted.DiseaseName,
		RegionID:    regionID,
		Transport:   TransportFax,
		Status:      StatusDraft,
		StorageKey:  DocumentKey(draftID),
		CreatedBy:   creatorID(req.Extracted),
		CreatedAt:   now,
	}

	recipients, err := s.refData.Recipients(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "recipient table unavailable", "error", err)
	} else if recipient, ok := ResolveRecipient(regionID, recipients); ok {
		meta.RecipientFax = recipient.FaxMado
	}

	if err := s.store.PutMetadata(ctx, meta); err != nil {
		return GenerateResult{}, err
	}

	previewURL, err := s.store.DocumentURL(ctx, draftID, s.cfg.PreviewTTL)
	if err != nil {
		return GenerateResult{}, err
	}

	s.telemetry.RecordDraftGenerated(ctx, regionID, meta.RecipientFax != "")
	s.logger.InfoContext(ctx, "draft generated",
		"draft_id", draftID,
		"encounter_id", req.EncounterID,
		"region_id", regionID,
		"recipient_resolved", meta.RecipientFax != "",
	)

	return GenerateResult{
		DraftID:    draftID,
		PreviewURL: previewURL,
		Metadata:   meta,
	}, nil
}

// GetDraft returns a draft's metadata record and a fresh preview URL.
func (s *Service) GetDraft(ctx context.Context, draftID string) (GenerateResult, error) {
	meta, err := s.store.GetMetadata(ctx, draftID)
	if err != nil {
		return GenerateResult{}, err
	}

	previewURL, err := s.store.DocumentURL(ctx, draftID, s.cfg.PreviewTTL)
	if err != nil {
		return GenerateResult{}, err
	}

	return GenerateResult{
		DraftID:    draftID,
		PreviewURL: previewURL,
		Metadata:   meta,
	}, nil
}

// Dispatch transmits a draft (or marks it for manual handling) and persists
// the resulting status transition. Metadata is re-read fresh on every call
// and the document bytes are re-read from storage on every transmission
// attempt, so a retry after send_failed re-attempts transmission.
// Precondition failures (missing credentials, missing destination) fail the
// call without mutating status.
func (s *Service) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	meta, err := s.store.GetMetadata(ctx, req.DraftID)
	if err != nil {
		return DispatchResult{}, err
	}

	switch req.Transport {
	case TransportManual:
		return s.dispatchManual(ctx, meta)
	case TransportEmail:
		return s.dispatchEmail(ctx, meta, req)
	default:
		return s.dispatchFax(ctx, meta, req)
	}
}

func (s *Service) dispatchManual(ctx context.Context, meta DraftMetadata) (DispatchResult, error) {
	meta.Status = StatusManualReady
	meta.Transport = TransportManual
	meta.SentAt = nil

	if err := s.store.PutMetadata(ctx, meta); err != nil {
		return DispatchResult{}, err
	}

	downloadURL, err := s.store.DocumentURL(ctx, meta.ID, s.cfg.PreviewTTL)
	if err != nil {
		return DispatchResult{}, err
	}

	s.telemetry.RecordDispatch(ctx, TransportManual, string(StatusManualReady))
	s.logger.InfoContext(ctx, "draft marked for manual handling", "draft_id", meta.ID)

	return DispatchResult{
		DraftID:     meta.ID,
		Sent:        false,
		Transport:   TransportManual,
		DownloadURL: downloadURL,
	}, nil
}

func (s *Service) dispatchFax(ctx context.Context, meta DraftMetadata, req DispatchRequest) (DispatchResult, error) {
	credentials, err := s.secrets.Get(ctx, s.faxSecret)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	}
	if !credentials.IsSet {
		return DispatchResult{}, ErrMissingCredentials
	}

	if meta.RecipientFax == "" {
		return DispatchResult{}, ErrNoRecipient
	}

	document, err := s.store.GetDocument(ctx, meta.ID)
	if err != nil {
		return DispatchResult{}, err
	}

	coverText := fmt.Sprintf("MADO report: %s", meta.Disease)
	jobID, err := s.faxSender.Send(ctx, credentials.Unwrap(), meta.RecipientFax, document, coverText)
	if err != nil {
		s.recordSendFailure(ctx, meta, err)
		s.telemetry.RecordDispatch(ctx, TransportFax, string(StatusSendFailed))
		return DispatchResult{}, err
	}

	if jobID == "" {
		jobID = uuid.New().String()
	}

	now := time.Now().UTC()
	meta.Status = StatusSent
	meta.Transport = TransportFax
	meta.ProviderJobID = jobID
	meta.SentAt = &now
	meta.SentBy = req.ApproveBy
	meta.Notes = ""

	if err := s.store.PutMetadata(ctx, meta); err != nil {
		return DispatchResult{}, err
	}

	s.telemetry.RecordDispatch(ctx, TransportFax, string(StatusSent))
	s.logger.InfoContext(ctx, "draft sent by fax",
		"draft_id", meta.ID,
		"provider_job_id", jobID,
		"sent_by", req.ApproveBy,
	)

	return DispatchResult{
		DraftID:       meta.ID,
		Sent:          true,
		Transport:     TransportFax,
		ProviderJobID: jobID,
	}, nil
}

func (s *Service) dispatchEmail(ctx context.Context, meta DraftMetadata, req DispatchRequest) (DispatchResult, error) {
	if req.RecipientEmail == "" {
		return DispatchResult{}, ErrNoRecipientEmail
	}

	document, err := s.store.GetDocument(ctx, meta.ID)
	if err != nil {
		return DispatchResult{}, err
	}

	subject := fmt.Sprintf("MADO report: %s", meta.Disease)
	body := fmt.Sprintf("Please find attached the mandatory disease notification for region %s.", meta.RegionID)

	messageID, err := s.mailer.SendDocument(ctx, req.RecipientEmail, subject, body, document, "MADO_filled.pdf")
	if err != nil {
		sendErr := &fax.TransmissionError{Err: err}
		s.recordSendFailure(ctx, meta, sendErr)
		s.telemetry.RecordDispatch(ctx, TransportEmail, string(StatusSendFailed))
		return DispatchResult{}, sendErr
	}

	if messageID == "" {
		messageID = uuid.New().String()
	}

	now := time.Now().UTC()
	meta.Status = StatusSent
	meta.Transport = TransportEmail
	meta.ProviderJobID = messageID
	meta.SentAt = &now
	meta.SentBy = req.ApproveBy
	meta.Notes = ""

	if err := s.store.PutMetadata(ctx, meta); err != nil {
		return DispatchResult{}, err
	}

	s.telemetry.RecordDispatch(ctx, TransportEmail, string(StatusSent))
	s.logger.InfoContext(ctx, "draft sent by email",
		"draft_id", meta.ID,
		"provider_job_id", messageID,
		"sent_by", req.ApproveBy,
	)

	return DispatchResult{
		DraftID:       meta.ID,
		Sent:          true,
		Transport:     TransportEmail,
		ProviderJobID: messageID,
	}, nil
}

// recordSendFailure transitions the draft to send_failed with the failure
// reason. The transmission error still surfaces to the caller; a failed
// metadata write here is logged rather than swallowed.
func (s *Service) recordSendFailure(ctx context.Context, meta DraftMetadata, sendErr error) {
	meta.Status = StatusSendFailed
	meta.Notes = sendErr.Error()

	if err := s.store.PutMetadata(ctx, meta); err != nil {
		s.logger.ErrorContext(ctx, "failed to record send failure",
			"draft_id", meta.ID,
			"error", err,
		)
	}
}

// canonicalData assembles the canonical field set for filling. Every
// canonical key is present; absent inputs become empty strings so a reused
// template never keeps stale values.
func canonicalData(req GenerateRequest, now time.Time) map[string]any {
	return map[string]any{
		FieldPatientName:           req.Patient.Name,
		FieldDateOfBirth:           req.Patient.DOB,
		FieldAddress:               req.Patient.Address,
		FieldPhone:                 req.Patient.Phone,
		FieldHealthInsuranceNumber: req.Patient.PHN,
		FieldClinician:             req.Extracted.ClinicianName,
		FieldDiseaseName:           req.Extracted.DiseaseName,
		FieldDeclarationDate:       now.Format(time.RFC3339),
	}
}

// patientHash derives a stable non-reversible reference from the health
// insurance number (or patient id). Raw identifiers never land in metadata.
func patientHash(p Patient) string {
	source := p.PHN
	if source == "" {
		source = p.ID
	}
	if source == "" {
		return ""
	}

	digest := sha256.Sum256([]byte(source))
	return hex.EncodeToString(digest[:16])
}

func creatorID(e Extracted) string {
	if e.ClinicianID != "" {
		return e.ClinicianID
	}
	return "system"
}
