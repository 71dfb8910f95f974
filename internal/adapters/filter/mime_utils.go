package filter

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"github.com/k3a/html2text"

	"github.com/captvenkat/faujnet-backend/internal/core"
)

// ErrNoTextContent is returned when a message carries no readable text part
var ErrNoTextContent = errors.New("no text content found in message")

// ParseMessage reads an RFC 5322 message into an Email. Header values are
// decoded, the first text/plain part is preferred as body and text/html is
// converted to plain text when no plain part exists.
func ParseMessage(r io.Reader) (*core.Email, error) {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	h := gomail.Header{Header: entity.Header}
	email := &core.Email{
		Headers: make(map[string][]string),
	}

	fields := entity.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		key := fields.Key()
		email.Headers[key] = append(email.Headers[key], value)
	}

	if subject, err := h.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = entity.Header.Get("Subject")
	}
	if id, err := h.MessageID(); err == nil && id != "" {
		email.MessageID = "<" + id + ">"
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		email.From = from[0].Address
	}
	if to, err := h.AddressList("To"); err == nil {
		for _, addr := range to {
			email.To = append(email.To, addr.Address)
		}
	}

	plain, html, err := extractText(entity)
	if err != nil {
		return nil, err
	}
	switch {
	case plain != "":
		email.Body = plain
	case html != "":
		email.Body = html2text.HTML2Text(html)
	default:
		return email, ErrNoTextContent
	}
	return email, nil
}

// extractText walks the MIME tree and returns the first text/plain and
// text/html bodies, skipping attachments
func extractText(e *message.Entity) (plain, html string, err error) {
	var walk func(*message.Entity) error
	walk = func(entity *message.Entity) error {
		if mr := entity.MultipartReader(); mr != nil {
			for {
				part, err := mr.NextPart()
				if err == io.EOF {
					return nil
				}
				if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
					return fmt.Errorf("failed to read multipart: %w", err)
				}
				if err := walk(part); err != nil {
					return err
				}
			}
		}

		if disp, _, _ := entity.Header.ContentDisposition(); disp == "attachment" {
			return nil
		}

		mediaType, _, err := entity.Header.ContentType()
		if err != nil {
			mediaType = "text/plain"
		}
		mediaType = strings.ToLower(mediaType)
		if mediaType != "text/plain" && mediaType != "text/html" {
			return nil
		}

		content, err := io.ReadAll(entity.Body)
		if err != nil {
			return fmt.Errorf("failed to read message body: %w", err)
		}
		switch {
		case mediaType == "text/plain" && plain == "":
			plain = string(content)
		case mediaType == "text/html" && html == "":
			html = string(content)
		}
		return nil
	}

	err = walk(e)
	return plain, html, err
}
