// Package server exposes the HTTP boundary: health, the pool-info proxy,
// holder counts, the SSE and websocket trade streams, and metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang-pool-streamer/internal/holders"
	"golang-pool-streamer/internal/hub"
	"golang-pool-streamer/internal/metrics"
	"golang-pool-streamer/internal/poolinfo"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Hub is the subscriber registry and history the stream endpoints read.
type Hub interface {
	Subscribe(sub hub.Subscriber)
	Unsubscribe(id string)
	Len() int
	SubscriberCount() int
}

// HolderStats serves holder-count aggregates.
type HolderStats interface {
	Get(ctx context.Context, mint string) (holders.Stats, error)
}

// PoolInfo fetches the upstream pool metadata.
type PoolInfo interface {
	Fetch(ctx context.Context) (*poolinfo.Response, error)
	GetStats() poolinfo.Stats
}

// Options wires the server's collaborators.
type Options struct {
	Hub       Hub
	Holders   HolderStats
	PoolInfo  PoolInfo
	Metrics   *metrics.Metrics
	Pool      string
	TokenMint string
	// AccessLog, when set, receives one JSON line per request.
	AccessLog string
	// StreamBuffer is the per-subscriber event queue length.
	StreamBuffer int
}

type Server struct {
	engine    *gin.Engine
	httpSrv   *http.Server
	hub       Hub
	holders   HolderStats
	poolInfo  PoolInfo
	metrics   *metrics.Metrics
	pool      string
	tokenMint string
	buffer    int
	upgrader  websocket.Upgrader
}

// DefaultStreamBuffer is the per-subscriber queue length when none is set.
const DefaultStreamBuffer = 256

// failure is the body of every non-stream error response.
type failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func New(opts Options) *Server {
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = DefaultStreamBuffer
	}

	s := &Server{
		hub:       opts.Hub,
		holders:   opts.Holders,
		poolInfo:  opts.PoolInfo,
		metrics:   opts.Metrics,
		pool:      opts.Pool,
		tokenMint: opts.TokenMint,
		buffer:    opts.StreamBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(opts.AccessLog, "/health", "/metrics"), CORS())

	router.GET("/health", s.health)
	router.GET("/api/pool", s.poolProxy)
	router.GET("/api/holders", s.holderCount)
	router.GET("/api/stream", s.sseStream)
	router.GET("/api/ws", s.wsStream)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	s.engine = router
	s.httpSrv = &http.Server{
		Handler:     router,
		ReadTimeout: 120 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve accepts connections on ln until Shutdown. It never returns
// http.ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	logrus.WithField("addr", ln.Addr().String()).Info("🌐 HTTP server listening")
	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections. Open streams are not drained.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return s.httpSrv.Close()
	}
	return err
}
