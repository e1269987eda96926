package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"voxbridge/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteListingHandler_CollectRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.GET("/", func(_ *gin.Context) {})
	router.POST("/test", func(_ *gin.Context) {})
	router.GET("/test", func(_ *gin.Context) {})
	router.GET("/debug/pprof", func(_ *gin.Context) {})
	v1 := router.Group("/v1")
	{
		v1.GET("/speech/locale/:code", func(_ *gin.Context) {})
	}

	handler := NewRouteListingHandler("Test Service", nil)
	handler.CollectRoutes(router)

	routes := handler.Routes()
	require.Len(t, routes, 4)
	assert.Equal(t, "/", routes[0].Path)
	assert.Equal(t, RouteInfo{Method: "GET", Path: "/test", HandlerName: routes[1].HandlerName}, routes[1])
	assert.Equal(t, "POST", routes[2].Method)
	assert.Equal(t, "/v1/speech/locale/:code", routes[3].Path)
	for _, route := range routes {
		assert.False(t, route.Documented, "no document, nothing is documented")
	}
}

func TestRouteListingHandler_Documented(t *testing.T) {
	gin.SetMode(gin.TestMode)
	schemas, err := middleware.DefaultSchemaLoader()
	require.NoError(t, err)

	router := gin.New()
	router.GET("/v1/speech/locale/:code", func(_ *gin.Context) {})
	router.POST("/v1/translate", func(_ *gin.Context) {})
	router.DELETE("/v1/translate", func(_ *gin.Context) {})

	handler := NewRouteListingHandler("voxbridge", schemas)
	handler.CollectRoutes(router)

	documented := map[string]bool{}
	for _, route := range handler.Routes() {
		documented[route.Method+" "+route.Path] = route.Documented
	}
	assert.Equal(t, map[string]bool{
		"GET /v1/speech/locale/:code": true,
		"POST /v1/translate":          true,
		"DELETE /v1/translate":        false,
	}, documented)
}

func TestRouteListingHandler_GetRouteListingJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/test", func(_ *gin.Context) {})

	handler := NewRouteListingHandler("Test Service", nil)
	handler.CollectRoutes(router)
	router.GET("/routes", handler.GetRouteListingJSON)

	req, _ := http.NewRequest("GET", "/routes", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	var body struct {
		Service string      `json:"service"`
		Routes  []RouteInfo `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Test Service", body.Service)
	require.Len(t, body.Routes, 1)
	assert.Equal(t, "/test", body.Routes[0].Path)
}

func TestRouteListingHandler_EmptyRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRouteListingHandler("Empty Service", nil)
	handler.CollectRoutes(gin.New())
	assert.Empty(t, handler.Routes())
}
