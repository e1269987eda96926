package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"voxbridge/internal/observability"
	contextutils "voxbridge/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// RequestValidationMiddleware validates JSON request bodies against the schema the
// document declares for the matched route. Routes without a JSON body schema pass through.
func RequestValidationMiddleware(loader *SchemaLoader, logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
			c.Next()
			return
		}

		ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "request_validation")
		defer span.End()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		schemaName := loader.DetermineRequestSchemaFromPath(SwaggerPath(path), method)
		span.SetAttributes(
			attribute.String("http.route", path),
			attribute.String("validation.schema", schemaName),
		)
		if schemaName == "" {
			c.Next()
			return
		}

		body, err := c.GetRawData()
		if err != nil {
			HandleAppError(c, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn,
				"Failed to read request body", err.Error(), err))
			c.Abort()
			return
		}
		// Restore the request body so handlers can read it
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var requestData interface{}
		if err := json.Unmarshal(body, &requestData); err != nil {
			logger.Warn(ctx, "Request body is not valid JSON", map[string]interface{}{
				"method": method,
				"path":   path,
				"schema": schemaName,
				"error":  err.Error(),
			})
			HandleAppError(c, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn,
				"Invalid request format", err.Error(), err))
			c.Abort()
			return
		}

		if err := loader.ValidateData(requestData, schemaName); err != nil {
			logger.Warn(ctx, "Request validation failed", map[string]interface{}{
				"method": method,
				"path":   path,
				"schema": schemaName,
				"error":  err.Error(),
			})
			span.SetAttributes(attribute.Bool("validation.failed", true))
			HandleAppError(c, err)
			c.Abort()
			return
		}

		c.Next()
	}
}

// SwaggerPath rewrites gin :param segments into the {param} form the document uses
func SwaggerPath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if len(seg) > 1 && seg[0] == ':' {
			segments[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segments, "/")
}
