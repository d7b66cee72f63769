// Package gmail holds the narrow Gmail surface vacationd needs and the
// domain types that cross it. Nothing here imports the Google client library.
package gmail

import (
	"errors"
	"strings"
)

type MessageID string
type LabelID string
type ThreadID string

// System labels used by the responder.
const (
	LabelInbox  LabelID = "INBOX"
	LabelUnread LabelID = "UNREAD"
)

// ErrLabelExists is returned by Client.CreateLabel when a label with the same
// name already exists.
var ErrLabelExists = errors.New("label already exists")

type Header struct {
	Name  string
	Value string
}

// Message is a transient copy of a remote message, fetched once per tick.
type Message struct {
	ID       MessageID
	ThreadID ThreadID
	LabelIDs []LabelID
	Headers  []Header // in wire order; names compared case-insensitively
	Snippet  string
}

// Header returns the first value for name and whether it was present.
func (m Message) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// HasHeader reports whether name is present, even with an empty value.
func (m Message) HasHeader(name string) bool {
	_, ok := m.Header(name)
	return ok
}

type Label struct {
	ID   LabelID
	Name string
}

type ModifyOps struct {
	AddLabels    []LabelID
	RemoveLabels []LabelID
}

type Query struct {
	Raw      string    // Gmail search string, e.g. `is:unread`
	LabelIDs []LabelID // server-side label filter, ANDed with Raw
}

type ListPage struct {
	IDs           []MessageID
	NextPageToken string
}

// OutgoingMessage is an RFC 5322 message ready for the send endpoint.
type OutgoingMessage struct {
	Raw      []byte
	ThreadID ThreadID // optional; keeps the reply in the original thread
}
