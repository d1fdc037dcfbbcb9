package httptransport

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"carscan-server/internal/platform/config"
	"carscan-server/internal/platform/logging"
	"carscan-server/internal/platform/observability"
)

// Options configures the HTTP router builder.
type Options struct {
	Config         *config.Config
	Logger         *logging.Logger
	AuthMiddleware gin.HandlerFunc
}

// Router bundles together the gin engine and common route groups.
type Router struct {
	Engine  *gin.Engine
	API     *gin.RouterGroup
	Secured *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with logging, recovery, CORS and observability middlewares.
func Build(opts Options) (*Router, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("http router requires config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}

	if opts.Config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(logger))
	engine.Use(observabilityMiddleware())

	if err := engine.SetTrustedProxies(opts.Config.Server.TrustedProxies); err != nil {
		logger.WarnTag("HTTP", "failed to set trusted proxies: %v", err)
	}

	origins := opts.Config.Web.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	engine.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Token",
		},
		ExposeHeaders:    []string{"Content-Length", "X-Detections"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if opts.Config.Web.Enabled && opts.Config.Web.StaticDir != "" {
		engine.Use(static.Serve("/", static.LocalFile(opts.Config.Web.StaticDir, true)))
	}

	api := engine.Group("/api")
	var secured *gin.RouterGroup
	if opts.AuthMiddleware != nil {
		secured = api.Group("")
		secured.Use(opts.AuthMiddleware)
	}

	return &Router{
		Engine:  engine,
		API:     api,
		Secured: secured,
	}, nil
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		logger.InfoTag(
			"HTTP",
			"%s %s -> %d (%s)",
			c.Request.Method,
			c.Request.URL.Path,
			status,
			duration,
		)
	}
}

func observabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		reqCtx, spanEnd := observability.StartSpan(c.Request.Context(), "http.server", path)
		var spanErr error
		c.Request = c.Request.WithContext(reqCtx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if len(c.Errors) > 0 {
			spanErr = c.Errors.Last().Err
		} else if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			spanErr = fmt.Errorf("status %d", status)
		}
		spanEnd(spanErr)

		observability.RecordMetric(
			reqCtx,
			"http.requests",
			1,
			map[string]string{
				"component": "http.server",
				"method":    c.Request.Method,
				"path":      path,
				"status":    strconv.Itoa(c.Writer.Status()),
			},
		)
		observability.RecordMetric(
			reqCtx,
			"http.request.duration_ms",
			float64(duration.Milliseconds()),
			map[string]string{
				"component": "http.server",
				"method":    c.Request.Method,
				"path":      path,
			},
		)
	}
}
