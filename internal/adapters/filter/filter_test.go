package filter

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/adapters/store"
	"github.com/captvenkat/faujnet-backend/internal/core"
	"github.com/captvenkat/faujnet-backend/internal/utils"
	"github.com/captvenkat/faujnet-backend/internal/whitelist"
)

const plainMessage = "From: Sailor <sailor@example.com>\r\n" +
	"To: ask@faujnet.in\r\n" +
	"Subject: =?utf-8?q?ECHS_query?=\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Is ECHS applicable to Navy personnel?\r\n"

const htmlOnlyMessage = "From: sailor@example.com\r\n" +
	"To: ask@faujnet.in\r\n" +
	"Subject: html\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Is ECHS applicable to <b>Navy</b> personnel?</p>\r\n" +
	"--outer\r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Disposition: attachment; filename=notes.txt\r\n" +
	"\r\n" +
	"attached notes\r\n" +
	"--outer--\r\n"

func TestParseMessagePlain(t *testing.T) {
	email, err := ParseMessage(strings.NewReader(plainMessage))
	require.NoError(t, err)

	assert.Equal(t, "sailor@example.com", email.From)
	assert.Equal(t, []string{"ask@faujnet.in"}, email.To)
	assert.Equal(t, "ECHS query", email.Subject)
	assert.Equal(t, "<abc123@example.com>", email.MessageID)
	assert.Contains(t, email.Body, "Is ECHS applicable to Navy personnel?")
	assert.Equal(t, []string{"ECHS query"}, email.Headers["Subject"])
}

func TestParseMessageHTMLFallbackSkipsAttachments(t *testing.T) {
	email, err := ParseMessage(strings.NewReader(htmlOnlyMessage))
	require.NoError(t, err)

	assert.Contains(t, email.Body, "Navy")
	assert.Contains(t, email.Body, "personnel?")
	assert.NotContains(t, email.Body, "<b>")
	assert.NotContains(t, email.Body, "attached notes")
}

func TestParseMessageWithoutText(t *testing.T) {
	raw := "From: a@example.com\r\nSubject: image\r\nContent-Type: image/png\r\n\r\nxxxx\r\n"
	email, err := ParseMessage(strings.NewReader(raw))
	assert.ErrorIs(t, err, ErrNoTextContent)
	require.NotNil(t, email)
	assert.Equal(t, "a@example.com", email.From)
}

type recordingResponder struct {
	mu        sync.Mutex
	decisions []*core.Decision
}

func (r *recordingResponder) Respond(_ context.Context, d *core.Decision, _ *core.Email) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
	return !d.IsSilent()
}

type recordingObserver struct {
	reasons []string
}

func (o *recordingObserver) ObserveInboundRejected(reason string) {
	o.reasons = append(o.reasons, reason)
}

type failingDuplicateStore struct {
	*store.MemoryStore
}

func (s failingDuplicateStore) OpportunityExists(context.Context, string, string, string) (bool, error) {
	return false, errors.New("connection reset")
}

func newTestFilter(t *testing.T, perSecond float64) (*SMTPFilter, *recordingResponder, *recordingObserver) {
	t.Helper()
	st := store.NewMemoryStore(zap.NewNop(), 0, 24*time.Hour)
	t.Cleanup(st.Stop)
	return newTestFilterWithStore(t, st, perSecond)
}

func newTestFilterWithStore(t *testing.T, st core.Store, perSecond float64) (*SMTPFilter, *recordingResponder, *recordingObserver) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.SeedFlags(ctx, core.DefaultFlags(core.Settings{
		AskEnabled:       true,
		SubmitEnabled:    true,
		OutboundEnabled:  true,
		RateLimitPerHour: 10,
		BanThreshold:     20,
	}, time.Now())))

	service := core.NewService(core.NewPipeline(st, zap.NewNop()), st, nil, zap.NewNop())
	responder := &recordingResponder{}
	observer := &recordingObserver{}
	f := NewSMTPFilter(
		service,
		responder,
		utils.NewTextProcessor(zap.NewNop(), 64*1024),
		whitelist.NewChecker([]string{"faujnet.in"}, zap.NewNop()),
		observer,
		zap.NewNop(),
		"127.0.0.1:0",
		"mx.faujnet.in",
		"ask",
		"submit@faujnet.in",
		perSecond,
	)
	return f, responder, observer
}

func TestSMTPFilterRoute(t *testing.T) {
	f, _, _ := newTestFilter(t, 0)

	tests := []struct {
		rcpt string
		kind core.EventKind
		ok   bool
	}{
		{"ask@faujnet.in", core.EventAsk, true},
		{"<ASK@FaujNet.in>", core.EventAsk, true},
		{"submit@faujnet.in", core.EventSubmit, true},
		{"submit@other.in", "", false},
		{"ask@other.in", "", false},
		{"postmaster@faujnet.in", "", false},
	}
	for _, tt := range tests {
		kind, ok := f.route(tt.rcpt)
		assert.Equal(t, tt.ok, ok, tt.rcpt)
		assert.Equal(t, tt.kind, kind, tt.rcpt)
	}
}

func TestSMTPSessionResolvesMessage(t *testing.T) {
	f, responder, observer := newTestFilter(t, 0)
	be := &smtpBackend{filter: f}
	sess, err := be.NewSession(nil)
	require.NoError(t, err)

	require.NoError(t, sess.Mail("bounce@example.com", nil))
	assert.Equal(t, errUnknownMailbox, sess.Rcpt("root@faujnet.in", nil))
	require.NoError(t, sess.Rcpt("ask@faujnet.in", nil))
	require.NoError(t, sess.Rcpt("ask@faujnet.in", nil))
	require.NoError(t, sess.Data(bytes.NewReader([]byte(plainMessage))))

	require.Len(t, responder.decisions, 1)
	d := responder.decisions[0]
	assert.Equal(t, core.EventAsk, d.Kind)
	assert.Equal(t, core.ActionNoMatch, d.Action)
	assert.NotEmpty(t, d.Reference)
	assert.Equal(t, []string{"unknown_recipient"}, observer.reasons)
}

const submissionMessage = "From: hr@techcorp.example\r\n" +
	"To: ask@faujnet.in, submit@faujnet.in\r\n" +
	"Subject: Security Lead opening\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Organisation: TechCorp\r\n" +
	"Title: Security Lead\r\n" +
	"Category: Employment\r\n" +
	"Description: Ex-servicemen are welcome to apply for this role.\r\n"

func TestSMTPSessionPartialStoreFailure(t *testing.T) {
	newSession := func(t *testing.T) (*smtpSession, *recordingResponder, *store.MemoryStore) {
		mem := store.NewMemoryStore(zap.NewNop(), 0, 24*time.Hour)
		t.Cleanup(mem.Stop)
		f, responder, _ := newTestFilterWithStore(t, failingDuplicateStore{mem}, 0)
		sess, err := (&smtpBackend{filter: f}).NewSession(nil)
		require.NoError(t, err)
		require.NoError(t, sess.Mail("hr@techcorp.example", nil))
		return sess.(*smtpSession), responder, mem
	}

	t.Run("earlier inbox decided is not retried", func(t *testing.T) {
		sess, responder, mem := newSession(t)
		require.NoError(t, sess.Rcpt("ask@faujnet.in", nil))
		require.NoError(t, sess.Rcpt("submit@faujnet.in", nil))

		require.NoError(t, sess.Data(strings.NewReader(submissionMessage)))

		require.Len(t, responder.decisions, 1)
		assert.Equal(t, core.EventAsk, responder.decisions[0].Kind)
		rec, err := mem.GetSender(context.Background(), core.HashAddress("hr@techcorp.example"))
		require.NoError(t, err)
		assert.Equal(t, 1, rec.TotalQueries)
		assert.Zero(t, rec.TotalSubmissions)
	})

	t.Run("nothing decided asks for a retry", func(t *testing.T) {
		sess, responder, _ := newSession(t)
		require.NoError(t, sess.Rcpt("submit@faujnet.in", nil))
		require.NoError(t, sess.Rcpt("ask@faujnet.in", nil))

		assert.Equal(t, errTemporary, sess.Data(strings.NewReader(submissionMessage)))
		assert.Empty(t, responder.decisions)
	})
}

func TestSMTPSessionDropsUnparseableMessage(t *testing.T) {
	f, responder, observer := newTestFilter(t, 0)
	sess, err := (&smtpBackend{filter: f}).NewSession(nil)
	require.NoError(t, err)

	require.NoError(t, sess.Mail("", nil))
	require.NoError(t, sess.Rcpt("submit@faujnet.in", nil))
	require.NoError(t, sess.Data(strings.NewReader("Subject: no sender\r\n\r\nhello\r\n")))

	assert.Empty(t, responder.decisions)
	assert.Equal(t, []string{"no_sender"}, observer.reasons)
}

func TestSMTPSessionThrottles(t *testing.T) {
	f, _, observer := newTestFilter(t, 1)
	sess, err := (&smtpBackend{filter: f}).NewSession(nil)
	require.NoError(t, err)

	require.NoError(t, sess.Mail("a@example.com", nil))
	sess.Reset()
	assert.Equal(t, errThrottled, sess.Mail("a@example.com", nil))
	assert.Equal(t, []string{"throttled"}, observer.reasons)
}

func TestCliFilterPrintsDecisionAndReply(t *testing.T) {
	f, _, _ := newTestFilter(t, 0)
	cli, err := NewCliFilter(f.service, f.textProcessor, zap.NewNop(), "ask@faujnet.in", "submit@faujnet.in", true)
	require.NoError(t, err)

	var out bytes.Buffer
	cli.SetOutput(&out)

	email, err := ParseMessage(strings.NewReader(plainMessage))
	require.NoError(t, err)
	d, err := cli.ProcessEmail(context.Background(), core.EventAsk, email)
	require.NoError(t, err)
	assert.Equal(t, core.ActionNoMatch, d.Action)

	report := out.String()
	assert.Contains(t, report, "Action: NO_MATCH")
	assert.Contains(t, report, "=== Reply ===")
	assert.Contains(t, report, "To: sailor@example.com")
}
