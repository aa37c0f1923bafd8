package server

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"golang-pool-streamer/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CORS allows any origin; the API is read-only and unauthenticated.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestLogger logs one entry per request. With accessLog set, entries go
// to a rotating JSON file instead of the global logger. Paths in notLogged
// are skipped.
func RequestLogger(accessLog string, notLogged ...string) gin.HandlerFunc {
	visitLog := logrus.StandardLogger()
	if accessLog != "" {
		visitLog = logrus.New()
		visitLog.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
		visitLog.Out = logger.RotatingFile(accessLog)
		visitLog.SetLevel(logrus.DebugLevel)
	}

	var skip map[string]struct{}
	if length := len(notLogged); length > 0 {
		skip = make(map[string]struct{}, length)
		for _, p := range notLogged {
			skip[p] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		start := time.Now()
		c.Next()
		stop := time.Since(start)

		dataLength := c.Writer.Size()
		if dataLength < 0 {
			dataLength = 0
		}
		statusCode := c.Writer.Status()

		entry := visitLog.WithFields(logrus.Fields{
			"statusCode": statusCode,
			"latency":    fmt.Sprintf("%d us", int(math.Ceil(float64(stop.Nanoseconds())/1000.0))),
			"clientIP":   c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"dataLength": dataLength,
		})

		switch {
		case len(c.Errors) > 0:
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
		case statusCode >= http.StatusInternalServerError:
			entry.Error("request failed")
		case statusCode >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}
