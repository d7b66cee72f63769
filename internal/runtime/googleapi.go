// Adapter from *gmail.Service to the narrow gmail.Client.
package runtime

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/lo"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	gc "github.com/joshsymonds/vacationd/internal/gmail"
	"github.com/joshsymonds/vacationd/internal/rate"
)

const me = "me"

type googleClient struct {
	svc     *gmail.Service
	limiter rate.Limiter
}

// NewGoogleAPIClient wraps svc. A nil limiter means calls are not gated.
func NewGoogleAPIClient(svc *gmail.Service, limiter rate.Limiter) *googleClient {
	if limiter == nil {
		limiter = rate.Unlimited{}
	}
	return &googleClient{svc: svc, limiter: limiter}
}

func (g *googleClient) List(ctx context.Context, q gc.Query, pageToken string) (gc.ListPage, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return gc.ListPage{}, err
	}
	call := g.svc.Users.Messages.List(me)
	if q.Raw != "" {
		call = call.Q(q.Raw)
	}
	if len(q.LabelIDs) > 0 {
		call = call.LabelIds(toStrings(q.LabelIDs)...)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Context(ctx).Do()
	if err != nil {
		return gc.ListPage{}, fmt.Errorf("list messages: %w", err)
	}
	ids := lo.Map(res.Messages, func(m *gmail.Message, _ int) gc.MessageID { return gc.MessageID(m.Id) })
	return gc.ListPage{IDs: ids, NextPageToken: res.NextPageToken}, nil
}

func (g *googleClient) Get(ctx context.Context, id gc.MessageID) (gc.Message, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return gc.Message{}, err
	}
	msg, err := g.svc.Users.Messages.Get(me, string(id)).Format("full").Context(ctx).Do()
	if err != nil {
		return gc.Message{}, fmt.Errorf("get message %s: %w", id, err)
	}
	out := gc.Message{
		ID:       gc.MessageID(msg.Id),
		ThreadID: gc.ThreadID(msg.ThreadId),
		LabelIDs: toLabelIDs(msg.LabelIds),
		Snippet:  msg.Snippet,
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			out.Headers = append(out.Headers, gc.Header{Name: h.Name, Value: h.Value})
		}
	}
	return out, nil
}

func (g *googleClient) Send(ctx context.Context, m gc.OutgoingMessage) (gc.MessageID, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(m.Raw),
		ThreadId: string(m.ThreadID),
	}
	sent, err := g.svc.Users.Messages.Send(me, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return gc.MessageID(sent.Id), nil
}

func (g *googleClient) Modify(ctx context.Context, id gc.MessageID, ops gc.ModifyOps) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	req := &gmail.ModifyMessageRequest{}
	if len(ops.AddLabels) > 0 {
		req.AddLabelIds = toStrings(ops.AddLabels)
	}
	if len(ops.RemoveLabels) > 0 {
		req.RemoveLabelIds = toStrings(ops.RemoveLabels)
	}
	if _, err := g.svc.Users.Messages.Modify(me, string(id), req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("modify message %s: %w", id, err)
	}
	return nil
}

func (g *googleClient) CreateLabel(ctx context.Context, name string) (gc.LabelID, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	created, err := g.svc.Users.Labels.Create(me, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return "", fmt.Errorf("create label %q: %w: %w", name, gc.ErrLabelExists, err)
		}
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	return gc.LabelID(created.Id), nil
}

func (g *googleClient) ListLabels(ctx context.Context) ([]gc.Label, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	lr, err := g.svc.Users.Labels.List(me).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return lo.Map(lr.Labels, func(l *gmail.Label, _ int) gc.Label {
		return gc.Label{ID: gc.LabelID(l.Id), Name: l.Name}
	}), nil
}

func toStrings(ids []gc.LabelID) []string {
	return lo.Map(ids, func(id gc.LabelID, _ int) string { return string(id) })
}

func toLabelIDs(ids []string) []gc.LabelID {
	return lo.Map(ids, func(id string, _ int) gc.LabelID { return gc.LabelID(id) })
}

var _ gc.Client = (*googleClient)(nil)
