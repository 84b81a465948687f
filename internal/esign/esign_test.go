package esign

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/franciscosanchezn/signflow-api/internal/models"
	"github.com/franciscosanchezn/signflow-api/internal/provider"
	"github.com/franciscosanchezn/signflow-api/internal/tokens"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Envelope{}))
	return db
}

type staticRunner struct {
	mu   sync.Mutex
	cred *tokens.Credential
	ops  []string
}

func (r *staticRunner) Run(ctx context.Context, operation string, op tokens.Operation) error {
	r.mu.Lock()
	r.ops = append(r.ops, operation)
	r.mu.Unlock()
	return op(ctx, r.cred)
}

func (r *staticRunner) operations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

// fakeProvider behaves like DocuSign for a single-signer account
type fakeProvider struct {
	mu       sync.Mutex
	next     int
	defs     map[string]*EnvelopeDefinition
	statuses map[string]string
	views    []*RecipientViewRequest
	voided   []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{defs: map[string]*EnvelopeDefinition{}, statuses: map[string]string{}}
}

func (f *fakeProvider) CreateEnvelope(ctx context.Context, cred *tokens.Credential, def *EnvelopeDefinition) (*EnvelopeSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("env-%d", f.next)
	f.defs[id] = def
	f.statuses[id] = def.Status
	return &EnvelopeSummary{EnvelopeID: id, Status: def.Status}, nil
}

func (f *fakeProvider) GetEnvelope(ctx context.Context, cred *tokens.Credential, envelopeID string) (*EnvelopeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[envelopeID]
	if !ok {
		return nil, &provider.Error{Kind: provider.ErrNotFound, StatusCode: 404, Code: "ENVELOPE_DOES_NOT_EXIST"}
	}
	changed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	info := &EnvelopeInfo{EnvelopeID: envelopeID, Status: status, StatusChangedAt: &changed}
	if status == "completed" {
		info.CompletedAt = &changed
	}
	return info, nil
}

func (f *fakeProvider) CreateRecipientView(ctx context.Context, cred *tokens.Credential, envelopeID string, view *RecipientViewRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views = append(f.views, view)
	def, ok := f.defs[envelopeID]
	if !ok {
		return "", &provider.Error{Kind: provider.ErrNotFound, StatusCode: 404}
	}
	signer := def.Recipients.Signers[0]
	// DocuSign matches the recipient on exact email, name and clientUserId
	if signer.Email != view.Email || signer.ClientUserID != view.ClientUserID || signer.Name != view.UserName {
		return "", &provider.Error{Kind: provider.ErrValidation, StatusCode: 400, Code: "UNKNOWN_ENVELOPE_RECIPIENT"}
	}
	return "https://demo.docusign.net/Signing/StartInSession.aspx?t=" + envelopeID, nil
}

func (f *fakeProvider) GetCombinedDocument(ctx context.Context, cred *tokens.Credential, envelopeID string) ([]byte, error) {
	return []byte("%PDF-1.7 signed " + envelopeID), nil
}

func (f *fakeProvider) VoidEnvelope(ctx context.Context, cred *tokens.Credential, envelopeID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voided = append(f.voided, envelopeID)
	f.statuses[envelopeID] = "voided"
	return nil
}

func (f *fakeProvider) setStatus(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
}

func (f *fakeProvider) viewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.views)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []*Invitation
	err  error
}

func (m *recordingMailer) SendSigningInvitation(ctx context.Context, inv *Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, inv)
	return nil
}

type serviceFixture struct {
	service  *Service
	provider *fakeProvider
	runner   *staticRunner
	repo     *GormRepository
	mailer   *recordingMailer
}

func newServiceFixture(t *testing.T, suppress bool) *serviceFixture {
	t.Helper()
	p := newFakeProvider()
	runner := &staticRunner{cred: &tokens.Credential{AccessToken: "access", AccountID: "acct-1", BaseURI: "https://demo.docusign.net"}}
	repo := NewGormRepository(setupTestDB(t))
	mailer := &recordingMailer{}

	svc := NewService(p, runner, repo, NewLinkSigner("link-secret", 365*24*time.Hour), mailer, nil, Config{
		PublicBaseURL:         "https://sign.example.com/",
		ReturnURL:             "https://sign.example.com/signing-complete",
		SuppressProviderEmail: suppress,
		Notification: NotificationPolicy{
			ReminderDelayDays:     2,
			ReminderFrequencyDays: 2,
			ExpireAfterDays:       365,
			ExpireWarnDays:        7,
		},
	})
	return &serviceFixture{service: svc, provider: p, runner: runner, repo: repo, mailer: mailer}
}

func sendRequest(email string, embedded bool) *SendRequest {
	return &SendRequest{
		Document:           []byte("%PDF-1.4 contract Client Signature: Date:"),
		FileName:           "Septic Install Contract.pdf",
		SignerEmail:        email,
		SignerName:         "Jane Doe",
		Message:            "Please review and sign.",
		UseEmbeddedSigning: embedded,
	}
}

func containsOp(ops []string, name string) bool {
	for _, op := range ops {
		if strings.EqualFold(op, name) {
			return true
		}
	}
	return false
}
