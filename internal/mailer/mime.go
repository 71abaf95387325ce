package mailer

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// BuildMIME assembles the RFC 5322 form of a message: a
// multipart/alternative body (text then HTML) plus any attachments.
// Transports that hand off raw message bytes use this; API-style
// collaborators can read the Message fields directly.
func BuildMIME(msg Message) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetSubject(msg.Subject)
	if msg.From != "" {
		h.SetAddressList("From", []*mail.Address{{Address: msg.From}})
	}
	if msg.ReplyTo != "" {
		h.SetAddressList("Reply-To", []*mail.Address{{Address: msg.ReplyTo}})
	}
	h.SetAddressList("To", toAddressList(msg.To))
	if len(msg.Cc) > 0 {
		h.SetAddressList("Cc", toAddressList(msg.Cc))
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("creating inline writer: %w", err)
	}

	if msg.Text != "" {
		var th mail.InlineHeader
		th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		part, err := iw.CreatePart(th)
		if err != nil {
			return nil, fmt.Errorf("creating text part: %w", err)
		}
		if _, err := io.WriteString(part, msg.Text); err != nil {
			return nil, fmt.Errorf("writing text part: %w", err)
		}
		part.Close()
	}

	if msg.HTML != "" {
		var hh mail.InlineHeader
		hh.SetContentType("text/html", map[string]string{"charset": "utf-8"})
		part, err := iw.CreatePart(hh)
		if err != nil {
			return nil, fmt.Errorf("creating html part: %w", err)
		}
		if _, err := io.WriteString(part, msg.HTML); err != nil {
			return nil, fmt.Errorf("writing html part: %w", err)
		}
		part.Close()
	}

	if err := iw.Close(); err != nil {
		return nil, fmt.Errorf("closing inline writer: %w", err)
	}

	for _, att := range msg.Attachments {
		var ah mail.AttachmentHeader
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ah.Set("Content-Type", contentType)
		ah.SetFilename(att.Filename)

		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("creating attachment %s: %w", att.Filename, err)
		}
		if _, err := aw.Write(att.Data); err != nil {
			return nil, fmt.Errorf("writing attachment %s: %w", att.Filename, err)
		}
		aw.Close()
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}

	return buf.Bytes(), nil
}

func toAddressList(addrs []string) []*mail.Address {
	list := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, &mail.Address{Address: a})
	}
	return list
}
