// Package label resolves the id of the label applied to answered mail.
package label

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/lo"

	gc "github.com/joshsymonds/vacationd/internal/gmail"
)

// DefaultName is the label vacationd tags answered mail with.
const DefaultName = "Vacation Mails"

// ErrNotFound means the label reported a name conflict but is absent from the
// label list.
var ErrNotFound = errors.New("label not found")

// Resolver creates the label on first use and falls back to looking it up when
// it already exists. The id is cached for the resolver's lifetime.
type Resolver struct {
	Client gc.Client
	Name   string
	Log    *slog.Logger

	mu sync.Mutex
	id gc.LabelID
}

func NewResolver(client gc.Client, name string, logger *slog.Logger) *Resolver {
	if name == "" {
		name = DefaultName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{Client: client, Name: name, Log: logger}
}

// Resolve returns the label id, creating the label if needed.
func (r *Resolver) Resolve(ctx context.Context) (gc.LabelID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id != "" {
		return r.id, nil
	}

	id, err := r.Client.CreateLabel(ctx, r.Name)
	switch {
	case err == nil:
		r.Log.InfoContext(ctx, "created label", "name", r.Name, "id", id)
	case errors.Is(err, gc.ErrLabelExists):
		id, err = r.lookup(ctx)
		if err != nil {
			return "", err
		}
		r.Log.DebugContext(ctx, "label already exists", "name", r.Name, "id", id)
	default:
		return "", fmt.Errorf("resolve label %q: %w", r.Name, err)
	}

	r.id = id
	return id, nil
}

func (r *Resolver) lookup(ctx context.Context) (gc.LabelID, error) {
	labels, err := r.Client.ListLabels(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve label %q: %w", r.Name, err)
	}
	found, ok := lo.Find(labels, func(l gc.Label) bool { return l.Name == r.Name })
	if !ok {
		return "", fmt.Errorf("resolve label %q: %w", r.Name, ErrNotFound)
	}
	return found.ID, nil
}
