package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	gomail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/captvenkat/faujnet-backend/internal/adapters/store"
	"github.com/captvenkat/faujnet-backend/internal/core"
	"github.com/captvenkat/faujnet-backend/internal/reply"
)

var testReply = &reply.Message{
	From:      "ask@faujnet.in",
	To:        "vet@example.com",
	Subject:   "Re: ECHS",
	Body:      "Thank you for your query.\n",
	InReplyTo: "<orig@example.com>",
	Reference: "3f2a",
	Kind:      "ASK",
	Action:    "NO_MATCH",
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []string
}

func (o *recordingObserver) ObserveDelivery(mode, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, mode+":"+status)
}

func TestComposeSetsAutoReplyHeaders(t *testing.T) {
	data, err := Compose(testReply, "mx.faujnet.in", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	r, err := gomail.CreateReader(bytes.NewReader(data))
	require.NoError(t, err)

	subject, err := r.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: ECHS", subject)
	assert.Equal(t, "auto-replied", r.Header.Get("Auto-Submitted"))
	assert.Equal(t, "All", r.Header.Get("X-Auto-Response-Suppress"))
	assert.Equal(t, "<orig@example.com>", r.Header.Get("In-Reply-To"))
	assert.Equal(t, "3f2a", r.Header.Get(ReferenceHeader))
	assert.Equal(t, "<3f2a@mx.faujnet.in>", r.Header.Get("Message-ID"))

	part, err := r.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Equal(t, testReply.Body, string(body))
}

func TestComposeRejectsBadAddress(t *testing.T) {
	bad := *testReply
	bad.To = "not an address"
	_, err := Compose(&bad, "localhost", time.Now())
	assert.Error(t, err)
}

type captureBackend struct {
	mu       sync.Mutex
	messages []capturedMessage
}

type capturedMessage struct {
	from string
	to   []string
	data []byte
}

func (b *captureBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &captureSession{backend: b}, nil
}

type captureSession struct {
	backend *captureBackend
	msg     capturedMessage
}

func (s *captureSession) Reset()        { s.msg = capturedMessage{} }
func (s *captureSession) Logout() error { return nil }

func (s *captureSession) Mail(from string, _ *smtp.MailOptions) error {
	s.msg.from = from
	return nil
}

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.msg.to = append(s.msg.to, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.msg.data = data
	s.backend.mu.Lock()
	s.backend.messages = append(s.backend.messages, s.msg)
	s.backend.mu.Unlock()
	return nil
}

func startRelay(t *testing.T) (string, *captureBackend) {
	t.Helper()
	be := &captureBackend{}
	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	srv.ReadTimeout = 5 * time.Second
	srv.WriteTimeout = 5 * time.Second

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(l)
	t.Cleanup(func() { srv.Close() })
	return l.Addr().String(), be
}

func TestSMTPMailerDispatch(t *testing.T) {
	addr, be := startRelay(t)
	obs := &recordingObserver{}
	m := NewSMTPMailer(addr, "", "", false, obs, zap.NewNop())

	require.NoError(t, m.Dispatch(context.Background(), testReply))

	be.mu.Lock()
	defer be.mu.Unlock()
	require.Len(t, be.messages, 1)
	assert.Equal(t, "ask@faujnet.in", be.messages[0].from)
	assert.Equal(t, []string{"vet@example.com"}, be.messages[0].to)
	assert.Contains(t, string(be.messages[0].data), "Thank you for your query.")
	assert.Equal(t, []string{"smtp:success"}, obs.statuses)
}

func TestSMTPMailerBreakerOpensOnRepeatedFailures(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	obs := &recordingObserver{}
	m := NewSMTPMailer(addr, "", "", false, obs, zap.NewNop())

	for i := 0; i < breakerFailures; i++ {
		err := m.Dispatch(context.Background(), testReply)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrRelayUnavailable))
	}

	err = m.Dispatch(context.Background(), testReply)
	assert.ErrorIs(t, err, ErrRelayUnavailable)
	assert.Equal(t, "smtp:breaker_open", obs.statuses[len(obs.statuses)-1])
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []*reply.Message
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, msg *reply.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

func (f *fakeDispatcher) Mode() string { return "fake" }
func (f *fakeDispatcher) Close() error { return nil }

func TestRelayHandleDecodesQueuedReply(t *testing.T) {
	target := &fakeDispatcher{}
	r := NewRelay(nil, "faujnet.replies", target, zap.NewNop())

	payload, err := json.Marshal(testReply)
	require.NoError(t, err)
	require.NoError(t, r.Handle(context.Background(), payload))
	require.Len(t, target.sent, 1)
	assert.Equal(t, *testReply, *target.sent[0])

	assert.Error(t, r.Handle(context.Background(), []byte("{")))
}

func TestLogMailer(t *testing.T) {
	obs := &recordingObserver{}
	m := NewLogMailer(obs, zap.NewNop())
	require.NoError(t, m.Dispatch(context.Background(), testReply))
	assert.Equal(t, []string{"log:logged"}, obs.statuses)
}

func TestResponder(t *testing.T) {
	ctx := context.Background()
	original := &core.Email{From: "vet@example.com", Subject: "ECHS", MessageID: "<orig@example.com>"}
	audible := &core.Decision{Kind: core.EventAsk, Action: core.ActionNoMatch, Reference: "r1"}

	newStore := func(outbound bool) *store.MemoryStore {
		st := store.NewMemoryStore(zap.NewNop(), 0, time.Hour)
		t.Cleanup(st.Stop)
		require.NoError(t, st.SeedFlags(ctx, core.DefaultFlags(core.Settings{OutboundEnabled: outbound}, time.Now())))
		return st
	}

	t.Run("dispatches when outbound is enabled", func(t *testing.T) {
		target := &fakeDispatcher{}
		r := NewResponder(target, newStore(true), "ask@faujnet.in", "submit@faujnet.in", zap.NewNop())

		assert.True(t, r.Respond(ctx, audible, original))
		r.Wait()
		require.Len(t, target.sent, 1)
		assert.Equal(t, "ask@faujnet.in", target.sent[0].From)
		assert.Equal(t, "vet@example.com", target.sent[0].To)
	})

	t.Run("silence sends nothing", func(t *testing.T) {
		target := &fakeDispatcher{}
		r := NewResponder(target, newStore(true), "ask@faujnet.in", "submit@faujnet.in", zap.NewNop())

		assert.False(t, r.Respond(ctx, &core.Decision{Kind: core.EventAsk, Action: core.ActionSilence}, original))
		r.Wait()
		assert.Empty(t, target.sent)
	})

	t.Run("outbound disabled drops the reply", func(t *testing.T) {
		target := &fakeDispatcher{}
		r := NewResponder(target, newStore(false), "ask@faujnet.in", "submit@faujnet.in", zap.NewNop())

		assert.False(t, r.Respond(ctx, audible, original))
		r.Wait()
		assert.Empty(t, target.sent)
	})

	t.Run("delivery failure is swallowed", func(t *testing.T) {
		target := &fakeDispatcher{err: errors.New("relay down")}
		r := NewResponder(target, newStore(true), "ask@faujnet.in", "submit@faujnet.in", zap.NewNop())

		assert.True(t, r.Respond(ctx, audible, original))
		r.Wait()
		assert.Len(t, target.sent, 1)
	})
}
