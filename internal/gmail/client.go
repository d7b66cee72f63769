package gmail

import "context"

// Client is the narrow Gmail surface required by vacationd.
type Client interface {
	List(ctx context.Context, q Query, pageToken string) (ListPage, error)
	Get(ctx context.Context, id MessageID) (Message, error)
	Send(ctx context.Context, msg OutgoingMessage) (MessageID, error)
	Modify(ctx context.Context, id MessageID, ops ModifyOps) error
	// CreateLabel returns an error wrapping ErrLabelExists on a name conflict.
	CreateLabel(ctx context.Context, name string) (LabelID, error)
	ListLabels(ctx context.Context) ([]Label, error)
}
