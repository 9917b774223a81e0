package mado

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cliniq/internal/config"
	"cliniq/internal/fax"
	"cliniq/internal/monitoring"
	"cliniq/internal/refdata"
	"cliniq/internal/secrets"
	"cliniq/internal/storage"
)

const testFaxSecret = "cliniq/mado/interfax"

// memStorage is an in-memory storage.Storage for exercising the draft
// lifecycle without a filesystem or S3.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Put(ctx context.Context, key string, content io.Reader, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStorage) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) GetURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

func (m *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memStorage) GetMetadata(ctx context.Context, key string) (storage.ObjectMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectMetadata{}, storage.ErrObjectNotFound
	}
	return storage.ObjectMetadata{Size: int64(len(data))}, nil
}

type fakeRepository struct {
	template      []byte
	templateErr   error
	fieldMap      map[string]string
	fieldMapErr   error
	recipients    []refdata.Recipient
	recipientsErr error
}

func (r *fakeRepository) Template(ctx context.Context) ([]byte, error) {
	return r.template, r.templateErr
}

func (r *fakeRepository) FieldMap(ctx context.Context) (map[string]string, error) {
	return r.fieldMap, r.fieldMapErr
}

func (r *fakeRepository) Recipients(ctx context.Context) ([]refdata.Recipient, error) {
	return r.recipients, r.recipientsErr
}

type fakeSender struct {
	jobID string
	err   error

	calls        int
	lastFax      string
	lastCreds    secrets.Credentials
	lastDocument []byte
	lastCover    string
}

func (s *fakeSender) Send(ctx context.Context, creds secrets.Credentials, faxNumber string, document []byte, coverText string) (string, error) {
	s.calls++
	s.lastCreds = creds
	s.lastFax = faxNumber
	s.lastDocument = document
	s.lastCover = coverText
	if s.err != nil {
		return "", s.err
	}
	return s.jobID, nil
}

type fakeMailer struct {
	messageID string
	err       error

	calls   int
	lastTo  string
	lastDoc []byte
}

func (m *fakeMailer) SendDocument(ctx context.Context, to, subject, bodyText string, document []byte, filename string) (string, error) {
	m.calls++
	m.lastTo = to
	m.lastDoc = document
	if m.err != nil {
		return "", m.err
	}
	return m.messageID, nil
}

type testEnv struct {
	service *Service
	store   *DraftStore
	storage *memStorage
	repo    *fakeRepository
	sender  *fakeSender
	mailer  *fakeMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	template, err := os.ReadFile(filepath.Join("testdata", "form.pdf"))
	require.NoError(t, err)

	st := newMemStorage()
	store := NewDraftStore(st)
	repo := &fakeRepository{
		template: template,
		fieldMap: map[string]string{
			FieldPatientName: "patient_name",
			FieldDiseaseName: "disease_name",
		},
		recipients: []refdata.Recipient{
			{RegionID: "06", Name: "Montréal", FaxMado: "15145550000"},
			{RegionID: "16", Name: "Montérégie", FaxMado: "14505551616"},
		},
	}
	sender := &fakeSender{jobID: "JOBX"}
	docMailer := &fakeMailer{messageID: "MSG1"}

	secretProvider := secrets.NewStaticProvider(map[string]secrets.Credentials{
		testFaxSecret: {User: "interfax-user", Password: "interfax-pass"},
	})

	tel, err := monitoring.NewOpenTelemetry(config.TelemetryConfig{})
	require.NoError(t, err)

	service := NewService(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		store,
		repo,
		secretProvider,
		sender,
		docMailer,
		tel,
		config.MadoConfig{DefaultRegion: "06", PreviewTTL: time.Hour},
		testFaxSecret,
	)

	return &testEnv{
		service: service,
		store:   store,
		storage: st,
		repo:    repo,
		sender:  sender,
		mailer:  docMailer,
	}
}

func testGenerateRequest() GenerateRequest {
	return GenerateRequest{
		EncounterID: "enc-1",
		Patient: Patient{
			ID:       "pat-1",
			Name:     "Éloïse Tremblay",
			DOB:      "1990-02-03",
			PHN:      "TREM90530201",
			RegionID: "06",
		},
		Extracted: Extracted{
			ClinicianName: "Dr. Roe, 514-555-1234",
			ClinicianID:   "clin-9",
			DiseaseName:   "Measles",
		},
	}
}

func (e *testEnv) seedDraft(t *testing.T, meta DraftMetadata) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.PutDocument(ctx, meta.ID, []byte("%PDF-1.4 fake")))
	require.NoError(t, e.store.PutMetadata(ctx, meta))
}

func baseMeta(id string) DraftMetadata {
	return DraftMetadata{
		ID:           id,
		EncounterID:  "enc-1",
		Disease:      "Measles",
		RegionID:     "06",
		RecipientFax: "15145550000",
		Transport:    TransportFax,
		Status:       StatusDraft,
		StorageKey:   DocumentKey(id),
		CreatedBy:    "clin-9",
		CreatedAt:    time.Now().UTC().Add(-time.Minute),
	}
}

func TestGenerate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.service.Generate(ctx, testGenerateRequest())
	require.NoError(t, err)

	_, err = uuid.Parse(result.DraftID)
	require.NoError(t, err, "draft id is a uuid")
	assert.Equal(t, "https://storage.test/"+DocumentKey(result.DraftID), result.PreviewURL)

	meta := result.Metadata
	assert.Equal(t, result.DraftID, meta.ID)
	assert.Equal(t, "enc-1", meta.EncounterID)
	assert.Equal(t, StatusDraft, meta.Status)
	assert.Equal(t, TransportFax, meta.Transport)
	assert.Equal(t, "06", meta.RegionID)
	assert.Equal(t, "15145550000", meta.RecipientFax)
	assert.Equal(t, "Measles", meta.Disease)
	assert.Equal(t, DocumentKey(result.DraftID), meta.StorageKey)
	assert.Equal(t, "clin-9", meta.CreatedBy)
	assert.Empty(t, meta.ProviderJobID)
	assert.Nil(t, meta.SentAt)

	// The hash must not leak the health insurance number.
	assert.Len(t, meta.PatientHash, 32)
	assert.NotContains(t, meta.PatientHash, "TREM")

	// Document and metadata both landed in storage.
	document, err := env.store.GetDocument(ctx, result.DraftID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(document, []byte("%PDF")))

	persisted, err := env.store.GetMetadata(ctx, result.DraftID)
	require.NoError(t, err)
	assert.Equal(t, meta, persisted)
}

func TestGenerateRegionPrecedence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Explicit request region wins over the patient's.
	req := testGenerateRequest()
	req.RegionID = "16"
	result, err := env.service.Generate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "16", result.Metadata.RegionID)
	assert.Equal(t, "14505551616", result.Metadata.RecipientFax)

	// No region anywhere: configured default.
	req = testGenerateRequest()
	req.Patient.RegionID = ""
	result, err = env.service.Generate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "06", result.Metadata.RegionID)
}

func TestGenerateUnknownRegionLeavesRecipientUnset(t *testing.T) {
	env := newTestEnv(t)
	req := testGenerateRequest()
	req.RegionID = "18"

	result, err := env.service.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, result.Metadata.RecipientFax, "unresolved region is not fatal at generation time")
	assert.Equal(t, StatusDraft, result.Metadata.Status)
}

func TestGenerateWithoutFieldMap(t *testing.T) {
	env := newTestEnv(t)
	env.repo.fieldMapErr = os.ErrPermission

	result, err := env.service.Generate(context.Background(), testGenerateRequest())
	require.NoError(t, err, "a broken field map degrades to an unfilled form")
	assert.Equal(t, StatusDraft, result.Metadata.Status)
}

func TestGeneratePatientHashFallsBackToID(t *testing.T) {
	env := newTestEnv(t)
	req := testGenerateRequest()
	req.Patient.PHN = ""

	result, err := env.service.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Metadata.PatientHash, 32)
	assert.NotContains(t, result.Metadata.PatientHash, "pat-1")
}

func TestGenerateTemplateFailure(t *testing.T) {
	env := newTestEnv(t)
	env.repo.template = nil
	env.repo.templateErr = os.ErrNotExist

	_, err := env.service.Generate(context.Background(), testGenerateRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template")
}

func TestDispatchManual(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDraft(t, baseMeta("d1"))

	result, err := env.service.Dispatch(ctx, DispatchRequest{
		DraftID:   "d1",
		ApproveBy: "dr.roe",
		Transport: TransportManual,
	})
	require.NoError(t, err)

	assert.False(t, result.Sent)
	assert.Equal(t, TransportManual, result.Transport)
	assert.Equal(t, "https://storage.test/"+DocumentKey("d1"), result.DownloadURL)
	assert.Zero(t, env.sender.calls, "manual dispatch never touches the fax provider")
	assert.Zero(t, env.mailer.calls)

	persisted, err := env.store.GetMetadata(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusManualReady, persisted.Status)
	assert.Equal(t, TransportManual, persisted.Transport)
	assert.Nil(t, persisted.SentAt)
}

func TestDispatchFax(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDraft(t, baseMeta("d1"))

	result, err := env.service.Dispatch(ctx, DispatchRequest{
		DraftID:   "d1",
		ApproveBy: "dr.roe",
		Transport: TransportFax,
	})
	require.NoError(t, err)

	assert.True(t, result.Sent)
	assert.Equal(t, "JOBX", result.ProviderJobID)
	assert.Equal(t, 1, env.sender.calls)
	assert.Equal(t, "15145550000", env.sender.lastFax)
	assert.Equal(t, "interfax-user", env.sender.lastCreds.User)
	assert.Equal(t, []byte("%PDF-1.4 fake"), env.sender.lastDocument)
	assert.Contains(t, env.sender.lastCover, "Measles")

	persisted, err := env.store.GetMetadata(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, persisted.Status)
	assert.Equal(t, "JOBX", persisted.ProviderJobID)
	assert.Equal(t, "dr.roe", persisted.SentBy)
	require.NotNil(t, persisted.SentAt)
	assert.WithinDuration(t, time.Now().UTC(), *persisted.SentAt, time.Minute)
}

func TestDispatchFaxAssignsJobIDWhenProviderOmitsIt(t *testing.T) {
	env := newTestEnv(t)
	env.sender.jobID = ""
	env.seedDraft(t, baseMeta("d1"))

	result, err := env.service.Dispatch(context.Background(), DispatchRequest{
		DraftID:   "d1",
		ApproveBy: "dr.roe",
		Transport: TransportFax,
	})
	require.NoError(t, err)

	_, err = uuid.Parse(result.ProviderJobID)
	assert.NoError(t, err, "a local job id stands in for a missing provider id")
}

func TestDispatchFaxNoRecipient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	meta := baseMeta("d1")
	meta.RecipientFax = ""
	env.seedDraft(t, meta)

	_, err := env.service.Dispatch(ctx, DispatchRequest{
		DraftID:   "d1",
		ApproveBy: "dr.roe",
		Transport: TransportFax,
	})
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Zero(t, env.sender.calls, "precondition failures never reach the provider")

	persisted, err := env.store.GetMetadata(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, persisted.Status, "precondition failures do not mutate status")
}

func TestDispatchFaxMissingCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.service.secrets = secrets.NewStaticProvider(nil)
	env.seedDraft(t, baseMeta("d1"))

	_, err := env.service.Dispatch(context.Background(), DispatchRequest{
		DraftID:   "d1",
		ApproveBy: "dr.roe",
		Transport: TransportFax,
	})
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Zero(t, env.sender.calls)
}

func TestDispatchFaxFailureThenRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDraft(t, baseMeta("d1"))

	env.sender.err = &fax.TransmissionError{StatusCode: 503, Message: "provider down"}
	_, err := env.service.Dispatch(ctx, DispatchRequest{
		DraftID:   "d1",
		ApproveBy: "dr.roe",
		Transport: TransportFax,
	})
	require.Error(t, err)

	var transmissionErr *fax.TransmissionError
	require.ErrorAs(t, err, &transmissionErr)
	assert.Equal(t, 503, transmissionErr.StatusCode)

	persisted, err := env.store.GetMetadata(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusSendFailed, persisted.Status)
	assert.Contains(t, persisted.Notes, "provider down")
	assert.Nil(t, persisted.SentAt)

	// send_failed is retryable: the next attempt re-reads the document and
	// transmits again.
	env.sender.err = nil
	env.sender.jobID = "RETRY1"
	result, err := env.service.Dispatch(ctx, DispatchRequest{
		DraftID:   "d1",
		ApproveBy: "dr.roe",
		Transport: TransportFax,
	})
	require.NoError(t, err)
	assert.True(t, result.Sent)
	assert.Equal(t, "RETRY1", result.ProviderJobID)
	assert.Equal(t, 2, env.sender.calls)

	persisted, err = env.store.GetMetadata(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, persisted.Status)
	assert.Empty(t, persisted.Notes, "a successful retry clears the failure note")
}

func TestDispatchEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDraft(t, baseMeta("d1"))

	result, err := env.service.Dispatch(ctx, DispatchRequest{
		DraftID:        "d1",
		ApproveBy:      "dr.roe",
		Transport:      TransportEmail,
		RecipientEmail: "dsp@example.org",
	})
	require.NoError(t, err)

	assert.True(t, result.Sent)
	assert.Equal(t, TransportEmail, result.Transport)
	assert.Equal(t, "MSG1", result.ProviderJobID)
	assert.Equal(t, 1, env.mailer.calls)
	assert.Equal(t, "dsp@example.org", env.mailer.lastTo)
	assert.Zero(t, env.sender.calls)

	persisted, err := env.store.GetMetadata(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusSent, persisted.Status)
	assert.Equal(t, TransportEmail, persisted.Transport)
}

func TestDispatchEmailWithoutAddress(t *testing.T) {
	env := newTestEnv(t)
	env.seedDraft(t, baseMeta("d1"))

	_, err := env.service.Dispatch(context.Background(), DispatchRequest{
		DraftID:   "d1",
		ApproveBy: "dr.roe",
		Transport: TransportEmail,
	})
	assert.ErrorIs(t, err, ErrNoRecipientEmail)
	assert.Zero(t, env.mailer.calls)
}

func TestDispatchEmailFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDraft(t, baseMeta("d1"))
	env.mailer.err = os.ErrDeadlineExceeded

	_, err := env.service.Dispatch(ctx, DispatchRequest{
		DraftID:        "d1",
		ApproveBy:      "dr.roe",
		Transport:      TransportEmail,
		RecipientEmail: "dsp@example.org",
	})
	require.Error(t, err)

	var transmissionErr *fax.TransmissionError
	assert.ErrorAs(t, err, &transmissionErr, "email failures share the transmission error taxonomy")

	persisted, err := env.store.GetMetadata(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusSendFailed, persisted.Status)
	assert.NotEmpty(t, persisted.Notes)
}

func TestDispatchUnknownDraft(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Dispatch(context.Background(), DispatchRequest{
		DraftID:   uuid.New().String(),
		ApproveBy: "dr.roe",
		Transport: TransportManual,
	})
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestGetDraft(t *testing.T) {
	env := newTestEnv(t)
	meta := baseMeta("d1")
	env.seedDraft(t, meta)

	result, err := env.service.GetDraft(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", result.DraftID)
	assert.Equal(t, meta, result.Metadata)
	assert.Equal(t, "https://storage.test/"+DocumentKey("d1"), result.PreviewURL)

	_, err = env.service.GetDraft(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestPatientHashIsStable(t *testing.T) {
	p := Patient{PHN: "TREM90530201"}
	assert.Equal(t, patientHash(p), patientHash(p))
	assert.NotEqual(t, patientHash(p), patientHash(Patient{PHN: "OTHER0000000"}))
	assert.Empty(t, patientHash(Patient{}))
}

func TestCanonicalDataCoversEveryField(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	data := canonicalData(testGenerateRequest(), now)

	for _, key := range []string{
		FieldPatientName, FieldDateOfBirth, FieldAddress, FieldPhone,
		FieldHealthInsuranceNumber, FieldClinician, FieldDiseaseName,
		FieldDeclarationDate,
	} {
		_, ok := data[key]
		assert.True(t, ok, "missing canonical key %s", key)
	}
	assert.Equal(t, "", data[FieldAddress], "absent inputs become empty strings")
	assert.Equal(t, now.Format(time.RFC3339), data[FieldDeclarationDate])
}
