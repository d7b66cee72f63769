// Package screen flags mail that was itself generated by a machine, so an
// auto-responder can stay out of reply loops (RFC 3834 section 2).
package screen

import (
	"net/mail"
	"regexp"
	"strings"

	gc "github.com/joshsymonds/vacationd/internal/gmail"
)

var angleBracketRe = regexp.MustCompile(`^[<\s]*(.*?)[>\s]*$`)

const listIDMatchGroups = 2

var noReplyLocalParts = []string{"noreply", "no-reply", "no_reply", "donotreply", "do-not-reply", "mailer-daemon", "postmaster"}

// Automated returns a short reason when msg looks machine-generated, or ""
// when a human probably sent it.
func Automated(msg gc.Message) string {
	if v, ok := msg.Header("Auto-Submitted"); ok && !strings.EqualFold(strings.TrimSpace(v), "no") {
		return "auto-submitted"
	}
	if v, _ := msg.Header("Precedence"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "bulk", "list", "junk":
			return "precedence"
		}
	}
	if v, _ := msg.Header("List-Id"); normalizeListID(v) != "" {
		return "mailing-list"
	}
	if v, _ := msg.Header("From"); isNoReply(v) {
		return "no-reply-sender"
	}
	return ""
}

func isNoReply(from string) bool {
	local := localPart(from)
	if local == "" {
		return false
	}
	for _, p := range noReplyLocalParts {
		if local == p || strings.HasPrefix(local, p+"+") {
			return true
		}
	}
	return false
}

func localPart(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	address := from
	if addr, err := mail.ParseAddress(from); err == nil {
		address = addr.Address
	}
	address = strings.ToLower(strings.TrimSpace(address))
	at := strings.LastIndex(address, "@")
	if at <= 0 {
		return ""
	}
	return address[:at]
}

func normalizeListID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if matches := angleBracketRe.FindStringSubmatch(raw); len(matches) == listIDMatchGroups {
		raw = matches[1]
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, ">")
	raw = strings.TrimPrefix(raw, "<")
	raw = strings.Trim(raw, "\" ")
	return strings.ToLower(raw)
}
