package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voxbridge/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidatedRouter(t *testing.T) (*gin.Engine, *string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loader, err := DefaultSchemaLoader()
	require.NoError(t, err)

	received := new(string)
	echo := func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		*received = string(body)
		c.Status(http.StatusOK)
	}

	router := gin.New()
	router.Use(RequestValidationMiddleware(loader, observability.NewNopLogger()))
	router.POST("/v1/translate", echo)
	router.POST("/v1/translate/batch", echo)
	router.POST("/v1/speech/recognize", echo)
	router.GET("/v1/languages", echo)
	return router, received
}

func TestRequestValidationMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{
			name:   "valid translate body reaches handler",
			method: "POST",
			path:   "/v1/translate",
			body:   `{"text":"hola","from_language":"es","to_language":"en"}`,
			status: http.StatusOK,
		},
		{
			name:   "missing field",
			method: "POST",
			path:   "/v1/translate",
			body:   `{"text":"hola","from_language":"es"}`,
			status: http.StatusBadRequest,
			code:   "VALIDATION_FAILED",
		},
		{
			name:   "malformed json",
			method: "POST",
			path:   "/v1/translate",
			body:   `{"text":`,
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "batch too large",
			method: "POST",
			path:   "/v1/translate/batch",
			body:   `{"requests":[` + strings.Repeat(`{"text":"a","from_language":"en","to_language":"fr"},`, 100) + `{"text":"a","from_language":"en","to_language":"fr"}]}`,
			status: http.StatusBadRequest,
			code:   "VALIDATION_FAILED",
		},
		{
			name:   "binary body is not validated",
			method: "POST",
			path:   "/v1/speech/recognize",
			body:   "RIFF....WAVE",
			status: http.StatusOK,
		},
		{
			name:   "GET passes through",
			method: "GET",
			path:   "/v1/languages",
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, received := newValidatedRouter(t)

			req, _ := http.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code == "" {
				assert.Equal(t, tt.body, *received, "handler sees the original body")
				return
			}

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.code, response["code"])
			assert.Empty(t, *received)
		})
	}
}
