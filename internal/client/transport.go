package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// ChatBackend performs the chat call. *backend.Client satisfies it.
type ChatBackend interface {
	Chat(ctx context.Context, token, message string) (string, error)
}

// SessionSource supplies the bearer token and is told when the backend
// rejects it. *Provider satisfies it.
type SessionSource interface {
	Token() (string, bool)
	Expire(ctx context.Context, token string) error
}

// Transport sends single user messages to the backend.
type Transport struct {
	backend  ChatBackend
	sessions SessionSource
	tracer   trace.Tracer
	sends    metric.Int64Counter
}

func NewTransport(b ChatBackend, sessions SessionSource) (*Transport, error) {
	if b == nil {
		return nil, errors.New("client: chat backend must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("client: session source must not be nil")
	}
	var sends metric.Int64Counter = noop.Int64Counter{}
	if c, err := otel.Meter(instrumentationName).Int64Counter("chat.sends",
		metric.WithDescription("Chat messages sent, by outcome"),
	); err == nil {
		sends = c
	}
	return &Transport{
		backend:  b,
		sessions: sessions,
		tracer:   otel.Tracer(instrumentationName),
		sends:    sends,
	}, nil
}

// Send delivers message and returns the backend's reply verbatim. Empty
// messages and missing tokens fail before any network call. A 401 from the
// backend clears the session and fails with SESSION_EXPIRED.
func (t *Transport) Send(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", t.fail(ctx, newError(ErrorInvalidInput, "empty_message", nil))
	}
	token, ok := t.sessions.Token()
	if !ok {
		return "", t.fail(ctx, newError(ErrorUnauthenticated, "no_token", nil))
	}

	ctx, span := t.tracer.Start(ctx, "chat.send", trace.WithAttributes(attribute.Int("message.length", len(message))))
	defer span.End()

	reply, err := t.backend.Chat(ctx, token, message)
	if err != nil {
		cerr := t.classify(ctx, token, err)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, string(cerr.Code))
		return "", t.fail(ctx, cerr)
	}

	t.sends.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	return reply, nil
}

func (t *Transport) classify(ctx context.Context, token string, err error) *Error {
	status, ok := statusCodeOf(err)
	switch {
	case ok && status == http.StatusUnauthorized:
		if lerr := t.sessions.Expire(ctx, token); lerr != nil {
			slog.Warn("failed to clear expired session", "err", lerr)
		}
		return &Error{Code: ErrorSessionExpired, Reason: "token_rejected", StatusCode: status, Err: err}
	case ok:
		return &Error{Code: ErrorBackend, Reason: "unexpected_status", StatusCode: status, Err: err}
	case isNetworkFailure(err):
		return newError(ErrorNetwork, "chat_request_failed", err)
	default:
		return newError(ErrorBackend, "malformed_response", err)
	}
}

func (t *Transport) fail(ctx context.Context, err *Error) error {
	t.sends.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(err.Code))))
	return err
}
