package responder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	gc "github.com/joshsymonds/vacationd/internal/gmail"
	"github.com/joshsymonds/vacationd/internal/label"
)

// ErrNotStarted is returned by Stop before the first successful Start.
var ErrNotStarted = errors.New("auto-reply has not been started")

// Connector authenticates and returns a ready Gmail client.
type Connector func(ctx context.Context) (gc.Client, error)

// Service performs one-time setup (authenticate, resolve the label) and owns
// the resulting Loop.
type Service struct {
	Connect   Connector
	LabelName string
	Logger    *slog.Logger
	Options   Options

	// base bounds every loop started by this service.
	base context.Context

	setupMu sync.Mutex
	client  gc.Client
	loop    atomic.Pointer[Loop]
}

// NewService constructs a Service whose loops live until base is canceled.
func NewService(base context.Context, connect Connector, labelName string, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if labelName == "" {
		labelName = label.DefaultName
	}
	return &Service{
		Connect:   connect,
		LabelName: labelName,
		Logger:    logger,
		Options:   opts,
		base:      base,
	}
}

// Start sets up on first use and starts the loop. Setup results are reused
// by later calls, so a stop/start cycle neither re-authenticates nor touches
// labels again.
func (s *Service) Start(ctx context.Context) (Status, error) {
	s.setupMu.Lock()
	defer s.setupMu.Unlock()

	loop := s.loop.Load()
	if loop == nil {
		if s.client == nil {
			client, err := s.Connect(ctx)
			if err != nil {
				return Status{}, fmt.Errorf("authenticate: %w", err)
			}
			s.client = client
		}
		id, err := label.NewResolver(s.client, s.LabelName, s.Logger).Resolve(ctx)
		if err != nil {
			return Status{}, err
		}
		loop = NewLoop(s.client, gc.Label{ID: id, Name: s.LabelName}, s.Logger, s.Options)
		s.loop.Store(loop)
	}
	return loop.Start(s.base), nil
}

// Stop halts the loop. Setup state is kept for the next Start.
func (s *Service) Stop(ctx context.Context) (Status, error) {
	loop := s.loop.Load()
	if loop == nil {
		return s.Status(), ErrNotStarted
	}
	err := loop.Stop(ctx)
	return loop.Status(), err
}

func (s *Service) Status() Status {
	if loop := s.loop.Load(); loop != nil {
		return loop.Status()
	}
	return Status{State: StateStopped, Label: s.LabelName}
}
