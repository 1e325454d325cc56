package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"analytica-chat/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"

	detailBadCredentials = "Incorrect username or password"
	detailInvalidToken   = "Could not validate credentials"
	detailAgentError     = "Error communicating with the agent."
	detailNoResponse     = "Agent did not produce a final response."
)

type Authenticator interface {
	IssueToken(ctx context.Context, username, password string) (usecase.TokenOutput, error)
	Authenticate(ctx context.Context, token string) (usecase.Principal, error)
}

type Replier interface {
	Reply(ctx context.Context, in usecase.ReplyInput) (usecase.ReplyOutput, error)
}

// Handler serves the token, chat and health routes as API Gateway proxy
// events.
type Handler struct {
	auth  Authenticator
	agent Replier
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

func NewHandler(auth Authenticator, agent Replier) (*Handler, error) {
	if auth == nil {
		return nil, errors.New("handler: authenticator must not be nil")
	}
	if agent == nil {
		return nil, errors.New("handler: agent must not be nil")
	}
	return &Handler{auth: auth, agent: agent}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := slog.With("correlation_id", correlationID, "method", req.HTTPMethod, "path", req.Path)

	var resp events.APIGatewayProxyResponse
	switch route(req.Path) {
	case "/token":
		if req.HTTPMethod != http.MethodPost {
			resp = methodNotAllowed(http.MethodPost)
			break
		}
		resp = h.token(ctx, log, req)
	case "/api/chat":
		if req.HTTPMethod != http.MethodPost {
			resp = methodNotAllowed(http.MethodPost)
			break
		}
		resp = h.chat(ctx, log, req)
	case "/health":
		if req.HTTPMethod != http.MethodGet && req.HTTPMethod != http.MethodHead {
			resp = methodNotAllowed(http.MethodGet)
			break
		}
		resp = jsonResponse(http.StatusOK, healthResponse{Status: "healthy"})
	default:
		resp = errorJSON(http.StatusNotFound, "Not Found", "NOT_FOUND")
	}

	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = correlationID
	log.Info("request handled", "status", resp.StatusCode)
	return resp, nil
}

func (h *Handler) token(ctx context.Context, log *slog.Logger, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	body, err := requestBody(req)
	if err != nil {
		return errorJSON(http.StatusBadRequest, "Invalid request body", string(usecase.ErrorInvalidInput))
	}
	form, err := url.ParseQuery(body)
	if err != nil {
		return errorJSON(http.StatusBadRequest, "Invalid form body", string(usecase.ErrorInvalidInput))
	}

	out, err := h.auth.IssueToken(ctx, form.Get("username"), form.Get("password"))
	if err != nil {
		return mapError(log, err, detailBadCredentials)
	}
	return jsonResponse(http.StatusOK, tokenResponse{AccessToken: out.AccessToken, TokenType: out.TokenType})
}

func (h *Handler) chat(ctx context.Context, log *slog.Logger, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	principal, err := h.auth.Authenticate(ctx, bearerToken(headerValue(req.Headers, "Authorization")))
	if err != nil {
		return mapError(log, err, detailInvalidToken)
	}

	body, err := requestBody(req)
	if err != nil {
		return errorJSON(http.StatusBadRequest, "Invalid request body", string(usecase.ErrorInvalidInput))
	}
	var in chatRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return errorJSON(http.StatusBadRequest, "Invalid JSON body", string(usecase.ErrorInvalidInput))
	}

	out, err := h.agent.Reply(ctx, usecase.ReplyInput{UserID: principal.Username, Message: in.Message})
	if err != nil {
		return mapError(log, err, detailInvalidToken)
	}
	return jsonResponse(http.StatusOK, chatResponse{Response: out.Response})
}

func mapError(log *slog.Logger, err error, unauthorizedDetail string) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		log.Error("unexpected error", "err", err)
		return errorJSON(http.StatusInternalServerError, detailAgentError, string(usecase.ErrorInternal))
	}

	code := string(ucErr.Code)
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		log.Warn("invalid input", "reason", ucErr.Reason)
		return errorJSON(http.StatusBadRequest, invalidInputDetail(ucErr.Reason), code)
	case usecase.ErrorUnauthorized:
		log.Warn("unauthorized", "reason", ucErr.Reason)
		resp := errorJSON(http.StatusUnauthorized, unauthorizedDetail, code)
		resp.Headers["WWW-Authenticate"] = "Bearer"
		return resp
	case usecase.ErrorRateLimited:
		log.Warn("rate limited", "reason", ucErr.Reason, "err", ucErr.Err)
		return errorJSON(http.StatusTooManyRequests, detailAgentError, code)
	case usecase.ErrorUpstream:
		log.Error("upstream failure", "reason", ucErr.Reason, "err", ucErr.Err)
		return errorJSON(http.StatusInternalServerError, detailAgentError, code)
	default:
		log.Error("internal failure", "reason", ucErr.Reason, "err", ucErr.Err)
		detail := detailAgentError
		if ucErr.Reason == "empty_agent_response" {
			detail = detailNoResponse
		}
		return errorJSON(http.StatusInternalServerError, detail, code)
	}
}

func invalidInputDetail(reason string) string {
	switch reason {
	case "empty_message":
		return "Message must not be empty"
	case "message_too_long":
		return "Message is too long"
	default:
		return "Invalid request"
	}
}

func requestBody(req events.APIGatewayProxyRequest) (string, error) {
	if !req.IsBase64Encoded {
		return req.Body, nil
	}
	b, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// route strips a trailing slash so "/token/" and "/token" match.
func route(path string) string {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// headerValue looks a header up case-insensitively; API Gateway passes
// headers through with whatever casing the caller used.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func methodNotAllowed(allow string) events.APIGatewayProxyResponse {
	resp := errorJSON(http.StatusMethodNotAllowed, "Method Not Allowed", "METHOD_NOT_ALLOWED")
	resp.Headers["Allow"] = allow
	return resp
}

func errorJSON(status int, detail, code string) events.APIGatewayProxyResponse {
	return jsonResponse(status, errorResponse{Detail: detail, Error: code})
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"detail":"Internal Server Error","error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}
