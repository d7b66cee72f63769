// Package reply builds the canned vacation reply for an incoming message.
package reply

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	gc "github.com/joshsymonds/vacationd/internal/gmail"
)

const DefaultBody = "Thank you very much for your email. I'm currently on vacation and will get back to you as soon as I can."

const subjectPrefix = "Re: "

// ErrNoSender means the source message has nobody to reply to.
var ErrNoSender = errors.New("message has no From header")

// Drafter renders replies. The zero value uses DefaultBody and time.Now.
type Drafter struct {
	Body  string
	Clock func() time.Time
}

// Draft addresses a plain-text reply to the sender of src with the subject
// prefixed "Re: ", threaded onto src.
func (d Drafter) Draft(src gc.Message) (gc.OutgoingMessage, error) {
	from, _ := src.Header("From")
	if strings.TrimSpace(from) == "" {
		return gc.OutgoingMessage{}, fmt.Errorf("draft reply to %s: %w", src.ID, ErrNoSender)
	}
	subject, _ := src.Header("Subject")

	var h mail.Header
	if addrs, err := mail.ParseAddressList(from); err == nil && len(addrs) > 0 {
		h.SetAddressList("To", addrs)
	} else {
		// keep whatever the sender wrote; Gmail rejects it if it is unusable
		h.Set("To", from)
	}
	h.SetSubject(subjectPrefix + subject)
	h.SetDate(d.now())
	if err := h.GenerateMessageID(); err != nil {
		return gc.OutgoingMessage{}, fmt.Errorf("generate message id: %w", err)
	}
	if msgID, _ := src.Header("Message-ID"); msgID != "" {
		refs, _ := src.Header("References")
		h.Set("In-Reply-To", msgID)
		h.Set("References", strings.TrimSpace(refs+" "+msgID))
	}
	h.Set("Auto-Submitted", "auto-replied")
	h.SetContentType("text/plain", map[string]string{"charset": "UTF-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return gc.OutgoingMessage{}, fmt.Errorf("create reply writer: %w", err)
	}
	if _, err := io.WriteString(w, d.body()+"\r\n"); err != nil {
		return gc.OutgoingMessage{}, fmt.Errorf("write reply body: %w", err)
	}
	if err := w.Close(); err != nil {
		return gc.OutgoingMessage{}, fmt.Errorf("close reply writer: %w", err)
	}
	return gc.OutgoingMessage{Raw: buf.Bytes(), ThreadID: src.ThreadID}, nil
}

func (d Drafter) body() string {
	if d.Body == "" {
		return DefaultBody
	}
	return d.Body
}

func (d Drafter) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock()
}
