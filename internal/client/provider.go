package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"analytica-chat/internal/domain"
	"analytica-chat/internal/sessionstore"
)

const instrumentationName = "analytica-chat/internal/client"

// Authenticator exchanges credentials for a bearer token.
// *backend.Client satisfies it.
type Authenticator interface {
	Token(ctx context.Context, username, password string) (string, error)
}

// Provider owns the authentication state for one client process. It is
// created explicitly and handed to whatever needs the session; there is no
// package-level instance.
type Provider struct {
	store  sessionstore.Store
	auth   Authenticator
	tracer trace.Tracer

	mu      sync.RWMutex
	session domain.Session
}

// NewProvider builds a Provider and rehydrates it from store. Storage that
// holds only one of the two session fields is treated as logged out and
// cleared.
func NewProvider(ctx context.Context, store sessionstore.Store, auth Authenticator) (*Provider, error) {
	if store == nil {
		return nil, errors.New("client: session store must not be nil")
	}
	if auth == nil {
		return nil, errors.New("client: authenticator must not be nil")
	}
	p := &Provider{
		store:  store,
		auth:   auth,
		tracer: otel.Tracer(instrumentationName),
	}
	if err := p.rehydrate(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) rehydrate(ctx context.Context) error {
	token, err := p.read(ctx, sessionstore.KeyToken)
	if err != nil {
		return err
	}
	identity, err := p.read(ctx, sessionstore.KeyIdentity)
	if err != nil {
		return err
	}

	sess := domain.Session{Token: token, Identity: identity}
	switch {
	case sess.Complete():
		p.session = sess
	case token != "" || identity != "":
		slog.Warn("discarding partial persisted session",
			"has_token", token != "", "has_identity", identity != "")
		if err := p.store.Delete(ctx, sessionstore.KeyToken, sessionstore.KeyIdentity); err != nil {
			slog.Warn("failed to clear partial session", "err", err)
		}
	}
	return nil
}

func (p *Provider) read(ctx context.Context, key string) (string, error) {
	v, err := p.store.Get(ctx, key)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("client: read persisted %s: %w", key, err)
	}
	return v, nil
}

// Current returns a snapshot of the session.
func (p *Provider) Current() domain.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

func (p *Provider) IsAuthenticated() bool {
	return p.Current().Authenticated()
}

// Token returns the bearer credential, if any.
func (p *Provider) Token() (string, bool) {
	sess := p.Current()
	return sess.Token, sess.Authenticated()
}

// Login submits credentials to the backend. Only a successful exchange that
// is also persisted changes the session; every failure leaves the previous
// session in place.
func (p *Provider) Login(ctx context.Context, identity, secret string) (domain.Session, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" || secret == "" {
		return domain.Session{}, newError(ErrorInvalidInput, "missing_credentials", nil)
	}

	ctx, span := p.tracer.Start(ctx, "session.login", trace.WithAttributes(attribute.String("identity", identity)))
	defer span.End()

	token, err := p.auth.Token(ctx, identity, secret)
	if err != nil {
		cerr := classifyLoginError(err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, string(cerr.Code))
		return domain.Session{}, cerr
	}

	// Serialize writers so storage and memory change together.
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.session
	next := domain.Session{Token: token, Identity: identity}
	if err := p.persist(ctx, next); err != nil {
		if rbErr := p.persist(ctx, prev); rbErr != nil {
			slog.Error("failed to restore session after write failure", "err", rbErr)
		}
		cerr := newError(ErrorStorage, "persist_session", err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, string(cerr.Code))
		return domain.Session{}, cerr
	}
	p.session = next
	slog.Info("logged in", "identity", identity)
	return next, nil
}

func (p *Provider) persist(ctx context.Context, sess domain.Session) error {
	if !sess.Complete() {
		return p.store.Delete(ctx, sessionstore.KeyToken, sessionstore.KeyIdentity)
	}
	return p.store.SetMany(ctx, map[string]string{
		sessionstore.KeyToken:    sess.Token,
		sessionstore.KeyIdentity: sess.Identity,
	})
}

// Logout clears the in-memory session and persisted storage. It is
// idempotent. Memory is cleared even when storage deletion fails.
func (p *Provider) Logout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clearLocked(ctx)
}

// Expire logs out only if token is still the current one, so a rejection of
// an old token cannot drop a session established in the meantime.
func (p *Provider) Expire(ctx context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token == "" || p.session.Token != token {
		return nil
	}
	return p.clearLocked(ctx)
}

func (p *Provider) clearLocked(ctx context.Context) error {
	was := p.session.Identity
	p.session = domain.Session{}
	if err := p.store.Delete(ctx, sessionstore.KeyToken, sessionstore.KeyIdentity); err != nil {
		return newError(ErrorStorage, "clear_session", err)
	}
	if was != "" {
		slog.Info("logged out", "identity", was)
	}
	return nil
}

func classifyLoginError(err error) *Error {
	if status, ok := statusCodeOf(err); ok {
		return &Error{Code: ErrorAuthenticationFailed, Reason: "credentials_rejected", StatusCode: status, Err: err}
	}
	if isNetworkFailure(err) {
		return newError(ErrorNetwork, "token_request_failed", err)
	}
	return newError(ErrorAuthenticationFailed, "malformed_token_response", err)
}
