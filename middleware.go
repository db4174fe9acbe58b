package main

import (
	"strings"
	"time"

	"docintake/pkg/config"
	"docintake/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			fields = append(fields, "trace_id", sc.TraceID().String())
		}
		if sub := c.GetString(ctxSubject); sub != "" {
			fields = append(fields, "user_id", sub)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: cfg.Methods(),
		AllowHeaders: cfg.Headers(),
		MaxAge:       12 * time.Hour,
	}
	for _, o := range cfg.Origins() {
		if o == "*" {
			cc.AllowAllOrigins = true
			break
		}
	}
	if !cc.AllowAllOrigins {
		cc.AllowOrigins = cfg.Origins()
	}
	if len(cc.AllowOrigins) == 0 && !cc.AllowAllOrigins {
		cc.AllowAllOrigins = true
	}
	return cors.New(cc)
}
