package system

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"

	"carscan-server/internal/domain/sessionstore"
	platformerrors "carscan-server/internal/platform/errors"
	"carscan-server/internal/platform/logging"
	httptransport "carscan-server/internal/transport/http"
)

// SessionCounter reports how many scan sessions are live.
type SessionCounter interface {
	Len() int
}

// ConnectionCounter reports open websocket streams.
type ConnectionCounter interface {
	Counts() (clients int, sessions int)
}

// Options wires the health endpoint. Store and Connections are optional.
type Options struct {
	Logger      *logging.Logger
	Sessions    SessionCounter
	Store       sessionstore.Store
	Connections ConnectionCounter
	Endpoint    string
	Version     string
}

// Service reports process health.
type Service struct {
	opts    Options
	started time.Time
}

type MemoryInfo struct {
	TotalMB     uint64  `json:"totalMb"`
	UsedMB      uint64  `json:"usedMb"`
	UsedPercent float64 `json:"usedPercent"`
}

type HealthData struct {
	Status     string         `json:"status"`
	Version    string         `json:"version,omitempty"`
	Uptime     string         `json:"uptime"`
	Sessions   int            `json:"sessions"`
	WSClients  int            `json:"wsClients"`
	Goroutines int            `json:"goroutines"`
	Detection  string         `json:"detectionEndpoint,omitempty"`
	Store      map[string]any `json:"store,omitempty"`
	Memory     *MemoryInfo    `json:"memory,omitempty"`
}

func NewService(opts Options) (*Service, error) {
	if opts.Sessions == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "system.new", "session counter is required")
	}
	return &Service{opts: opts, started: time.Now()}, nil
}

// Register mounts /health under router.
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/health", s.handleHealth)
	return nil
}

// handleHealth reports liveness and resource usage.
// @Summary Service health
// @Tags System
// @Produce json
// @Success 200 {object} HealthData
// @Router /api/health [get]
func (s *Service) handleHealth(c *gin.Context) {
	data := HealthData{
		Status:     "ok",
		Version:    s.opts.Version,
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Sessions:   s.opts.Sessions.Len(),
		Goroutines: runtime.NumGoroutine(),
		Detection:  s.opts.Endpoint,
	}
	if s.opts.Connections != nil {
		data.WSClients, _ = s.opts.Connections.Counts()
	}

	if s.opts.Store != nil {
		stats, err := s.opts.Store.Stats(c.Request.Context())
		if err != nil {
			s.opts.Logger.WarnTag("HTTP", "session store stats failed: %v", err)
			data.Status = "degraded"
		} else {
			data.Store = stats
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(c.Request.Context()); err == nil {
		data.Memory = &MemoryInfo{
			TotalMB:     vm.Total / 1024 / 1024,
			UsedMB:      vm.Used / 1024 / 1024,
			UsedPercent: vm.UsedPercent,
		}
	}

	httptransport.RespondSuccess(c, http.StatusOK, data, "")
}
