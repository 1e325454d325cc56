package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const maxRequestBody = 1 << 20

// NewRouter exposes Handle over plain HTTP for container deployments. The
// same routes and error bodies are served as under Lambda.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if origins := normalizeOrigins(allowedOrigins); len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{
				http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
				http.MethodPatch, http.MethodDelete, http.MethodOptions,
			},
			AllowHeaders:     []string{"Origin", "Accept", "Authorization", "Content-Type", correlationHeader},
			ExposeHeaders:    []string{correlationHeader},
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}))
	}

	serve := func(c *gin.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Detail: "Request body too large", Error: "INVALID_INPUT"})
				return
			}
			c.JSON(http.StatusBadRequest, errorResponse{Detail: "Invalid request body", Error: "INVALID_INPUT"})
			return
		}
		headers := make(map[string]string, len(c.Request.Header))
		for k := range c.Request.Header {
			headers[k] = c.Request.Header.Get(k)
		}

		resp, err := h.Handle(c.Request.Context(), events.APIGatewayProxyRequest{
			HTTPMethod: c.Request.Method,
			Path:       c.Request.URL.Path,
			Headers:    headers,
			Body:       string(body),
		})
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		for k, v := range resp.Headers {
			c.Header(k, v)
		}
		c.Data(resp.StatusCode, resp.Headers["Content-Type"], []byte(resp.Body))
	}

	r.POST("/token", serve)
	r.POST("/api/chat", serve)
	r.GET("/health", serve)
	r.NoRoute(serve)
	return r
}

// normalizeOrigins drops trailing slashes and entries without a scheme;
// cors matches origins exactly and panics on schemeless ones.
func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" || strings.Contains(o, "://") {
			out = append(out, o)
		}
	}
	return out
}
