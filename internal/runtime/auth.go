package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/joshsymonds/vacationd/internal/credential"
	gc "github.com/joshsymonds/vacationd/internal/gmail"
	"github.com/joshsymonds/vacationd/internal/rate"
)

// Scopes is the fixed grant requested from the account owner.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
	gmail.GmailLabelsScope,
	gmail.MailGoogleComScope,
}

const consentTimeout = 5 * time.Minute

// Authenticator turns an OAuth client credentials file into an authorized
// HTTP client. The first run without a stored token goes through the
// installed-app loopback consent flow.
type Authenticator struct {
	CredentialsFile string
	Store           credential.TokenStore
	// CallbackAddr is where the one-shot consent listener binds, e.g. 127.0.0.1:0.
	CallbackAddr string
	Log          *slog.Logger
	// OpenURL presents the consent URL to the account owner. Defaults to logging it.
	OpenURL func(authURL string) error
}

// Client returns an HTTP client that attaches (and refreshes) the account's
// token. The client outlives ctx cancellation; ctx only bounds the consent flow.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	data, err := os.ReadFile(a.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", a.CredentialsFile, err)
	}
	cfg, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", a.CredentialsFile, err)
	}

	tok, err := a.Store.Load()
	switch {
	case errors.Is(err, credential.ErrNoToken):
		tok, err = a.consent(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if saveErr := a.Store.Save(tok); saveErr != nil {
			return nil, fmt.Errorf("save token: %w", saveErr)
		}
	case err != nil:
		return nil, fmt.Errorf("load token: %w", err)
	}

	base := context.WithoutCancel(ctx)
	src := &persistingSource{
		src:   cfg.TokenSource(base, tok),
		store: a.Store,
		last:  tok.AccessToken,
		log:   a.logger(),
	}
	return oauth2.NewClient(base, src), nil
}

func (a *Authenticator) consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, consentTimeout)
	defer cancel()

	addr := a.CallbackAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}

	local := *cfg
	local.RedirectURL = "http://" + ln.Addr().String() + "/"
	state := uuid.NewString()

	codes := make(chan string, 1)
	errs := make(chan error, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "state mismatch", http.StatusBadRequest)
				return
			}
			if reason := q.Get("error"); reason != "" {
				http.Error(w, "authorization denied", http.StatusForbidden)
				deliver(errs, fmt.Errorf("authorization denied: %s", reason))
				return
			}
			code := q.Get("code")
			if code == "" {
				http.Error(w, "missing code", http.StatusBadRequest)
				return
			}
			_, _ = fmt.Fprintln(w, "vacationd is authorized. You can close this window.")
			deliver(codes, code)
		}),
	}
	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			deliver(errs, fmt.Errorf("oauth callback server: %w", serveErr))
		}
	}()
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := local.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err := a.openURL(authURL); err != nil {
		return nil, fmt.Errorf("present consent url: %w", err)
	}

	var code string
	select {
	case code = <-codes:
	case err := <-errs:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}

	tok, err := local.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func (a *Authenticator) openURL(authURL string) error {
	if a.OpenURL != nil {
		return a.OpenURL(authURL)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		return err
	}
	a.logger().Warn("gmail authorization required, open this url in a browser",
		"url", authURL, "redirect", u.Query().Get("redirect_uri"))
	return nil
}

func (a *Authenticator) logger() *slog.Logger {
	if a.Log == nil {
		return DefaultLogger()
	}
	return a.Log
}

func deliver[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// persistingSource writes refreshed tokens back to the store.
type persistingSource struct {
	src   oauth2.TokenSource
	store credential.TokenStore
	log   *slog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if saveErr := p.store.Save(tok); saveErr != nil {
			p.log.Warn("persist refreshed token", "error", saveErr)
		}
	}
	return tok, nil
}

// NewGmailClient builds the narrow client on top of an authorized HTTP client.
func NewGmailClient(ctx context.Context, hc *http.Client, limiter rate.Limiter) (gc.Client, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGoogleAPIClient(svc, limiter), nil
}
