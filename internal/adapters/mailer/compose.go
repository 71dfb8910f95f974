package mailer

import (
	"bytes"
	"fmt"
	"time"

	gomail "github.com/emersion/go-message/mail"

	"github.com/captvenkat/faujnet-backend/internal/reply"
)

// ReferenceHeader carries the decision reference on outbound replies
const ReferenceHeader = "X-FaujNet-Reference"

// Compose builds an RFC 5322 text/plain message for a rendered reply
func Compose(msg *reply.Message, hostname string, now time.Time) ([]byte, error) {
	from, err := gomail.ParseAddress(msg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	to, err := gomail.ParseAddress(msg.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	var h gomail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*gomail.Address{from})
	h.SetAddressList("To", []*gomail.Address{to})
	h.SetSubject(msg.Subject)
	h.Set("Message-ID", fmt.Sprintf("<%s@%s>", msg.Reference, hostname))
	h.Set("Auto-Submitted", "auto-replied")
	h.Set("X-Auto-Response-Suppress", "All")
	h.Set(ReferenceHeader, msg.Reference)
	if msg.InReplyTo != "" {
		h.Set("In-Reply-To", msg.InReplyTo)
		h.Set("References", msg.InReplyTo)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := w.Write([]byte(msg.Body)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message writer: %w", err)
	}
	return buf.Bytes(), nil
}
