package handlers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"

	"voxbridge/internal/config"
	"voxbridge/internal/middleware"
	"voxbridge/internal/observability"
	"voxbridge/internal/services"
	"voxbridge/internal/version"
)

// When adding an endpoint, document it in internal/middleware/swagger.yaml so the
// request validator and the route listing pick it up.

// NewRouter creates the gin engine with all middleware and routes
func NewRouter(
	cfg *config.Config,
	translationService services.TranslationServiceInterface,
	speechService services.SpeechServiceInterface,
	logger *observability.Logger,
) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}
	if cfg.IsTest {
		gin.SetMode(gin.TestMode)
	}

	schemas, err := middleware.DefaultSchemaLoader()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.RedirectTrailingSlash = false

	router.Use(middleware.ErrorRecoveryMiddleware(logger))
	router.Use(middleware.RequestLogger(logger))

	// Health check endpoint (defined before tracing)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": config.DefaultServiceName})
	})

	serviceName := cfg.OpenTelemetry.ServiceName
	if serviceName == "" {
		serviceName = config.DefaultServiceName
	}
	router.Use(observability.GinMiddleware(serviceName))
	router.Use(observability.GinErrorSpanMiddleware())

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug
	secureConfig.ContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"
	router.Use(secure.New(secureConfig))

	router.GET("/swagger.yaml", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml", middleware.SwaggerSpec())
	})

	validation := middleware.RequestValidationMiddleware(schemas, logger)
	translationHandler := NewTranslationHandler(translationService, cfg, logger)
	speechHandler := NewSpeechHandler(speechService, cfg, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, version.Get(serviceName))
		})
		translationHandler.RegisterRoutes(v1, validation)
		speechHandler.RegisterRoutes(v1, validation)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	routeListing := NewRouteListingHandler(serviceName, schemas)
	routeListing.CollectRoutes(router)
	router.GET("/", routeListing.GetRouteListingJSON)

	return router, nil
}
