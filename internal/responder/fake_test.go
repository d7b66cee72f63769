package responder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	gc "github.com/joshsymonds/vacationd/internal/gmail"
)

type modifyCall struct {
	ID  gc.MessageID
	Ops gc.ModifyOps
}

// fakeMailbox behaves like a tiny Gmail account: List returns messages that
// carry both INBOX and UNREAD, Modify edits their labels.
type fakeMailbox struct {
	mu sync.Mutex

	order    []gc.MessageID
	messages map[gc.MessageID]gc.Message
	labels   []gc.Label
	pageSize int

	queries     []gc.Query
	gets        map[gc.MessageID]int
	sent        []gc.OutgoingMessage
	modified    []modifyCall
	createCalls int

	listErr   error
	sendErr   error
	createErr error

	// Hooks run outside the lock.
	beforeGet func(gc.MessageID)
	afterSend func()
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		messages: map[gc.MessageID]gc.Message{},
		gets:     map[gc.MessageID]int{},
	}
}

// deliver drops an unread message into the inbox. headers alternate name, value.
func (f *fakeMailbox) deliver(id gc.MessageID, headers ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := gc.Message{
		ID:       id,
		ThreadID: gc.ThreadID("thread-" + string(id)),
		LabelIDs: []gc.LabelID{gc.LabelInbox, gc.LabelUnread},
	}
	for i := 0; i+1 < len(headers); i += 2 {
		msg.Headers = append(msg.Headers, gc.Header{Name: headers[i], Value: headers[i+1]})
	}
	f.order = append(f.order, id)
	f.messages[id] = msg
}

func (f *fakeMailbox) List(ctx context.Context, q gc.Query, pageToken string) (gc.ListPage, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.listErr != nil {
		return gc.ListPage{}, f.listErr
	}
	var ids []gc.MessageID
	for _, id := range f.order {
		labels := f.messages[id].LabelIDs
		if slices.Contains(labels, gc.LabelInbox) && slices.Contains(labels, gc.LabelUnread) {
			ids = append(ids, id)
		}
	}
	if f.pageSize <= 0 {
		return gc.ListPage{IDs: ids}, nil
	}
	start := 0
	if pageToken != "" {
		start, _ = strconv.Atoi(pageToken)
	}
	end := min(start+f.pageSize, len(ids))
	page := gc.ListPage{IDs: ids[start:end]}
	if end < len(ids) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeMailbox) Get(ctx context.Context, id gc.MessageID) (gc.Message, error) {
	_ = ctx
	if f.beforeGet != nil {
		f.beforeGet(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets[id]++
	msg, ok := f.messages[id]
	if !ok {
		return gc.Message{}, fmt.Errorf("get message %s: not found", id)
	}
	return msg, nil
}

func (f *fakeMailbox) Send(ctx context.Context, msg gc.OutgoingMessage) (gc.MessageID, error) {
	_ = ctx
	f.mu.Lock()
	if f.sendErr != nil {
		f.mu.Unlock()
		return "", f.sendErr
	}
	f.sent = append(f.sent, msg)
	id := gc.MessageID(fmt.Sprintf("sent-%d", len(f.sent)))
	f.mu.Unlock()
	if f.afterSend != nil {
		f.afterSend()
	}
	return id, nil
}

// Modify refuses to run on a done context, like the real API client.
func (f *fakeMailbox) Modify(ctx context.Context, id gc.MessageID, ops gc.ModifyOps) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modified = append(f.modified, modifyCall{ID: id, Ops: ops})
	msg := f.messages[id]
	msg.LabelIDs = slices.DeleteFunc(slices.Clone(msg.LabelIDs), func(l gc.LabelID) bool {
		return slices.Contains(ops.RemoveLabels, l)
	})
	msg.LabelIDs = append(msg.LabelIDs, ops.AddLabels...)
	f.messages[id] = msg
	return nil
}

func (f *fakeMailbox) CreateLabel(ctx context.Context, name string) (gc.LabelID, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	for _, l := range f.labels {
		if l.Name == name {
			return "", fmt.Errorf("create label %q: %w", name, gc.ErrLabelExists)
		}
	}
	id := gc.LabelID(fmt.Sprintf("L%d", len(f.labels)+1))
	f.labels = append(f.labels, gc.Label{ID: id, Name: name})
	return id, nil
}

func (f *fakeMailbox) ListLabels(ctx context.Context) ([]gc.Label, error) {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.labels), nil
}

func (f *fakeMailbox) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeMailbox) modifiedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.modified)
}

func (f *fakeMailbox) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeMailbox) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
