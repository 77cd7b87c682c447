// Package control implements the JSON control-plane HTTP server: the
// thin FFI-adjacent surface a UI talks to for transport, mixer, and
// voice-pool control, kept entirely off the audio thread. Every handler
// here only ever calls into engine.Engine's UI-thread API surface.
package control

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/reelforge/engine/internal/ids"
	"github.com/reelforge/engine/internal/rflog"
	"github.com/reelforge/engine/internal/voicepool"
)

// Playback is the subset of *engine.Engine the control plane drives.
// Kept as an interface so this package never imports internal/engine
// directly, avoiding an import cycle if engine ever wants to reference
// control for a status readback.
type Playback interface {
	Play()
	Pause()
	Stop()
	Record()
	Seek(seconds float64)
	PositionSeconds() float64
	IsPlaying() bool

	SetMasterVolume(linear float64)
	MasterVolume() float64

	SetBusVolume(bus ids.BusID, linear float64) bool
	SetBusPan(bus ids.BusID, pan float64) bool
	SetBusMute(bus ids.BusID, mute bool) bool
	SetBusSolo(bus ids.BusID, solo bool) bool
	GetBusState(bus ids.BusID) (volume, pan float64, mute, solo, ok bool)

	StopAllOneShots()
	StopSourceOneShots(source voicepool.Source)
	SetActiveSection(source voicepool.Source)
	GetActiveSection() voicepool.Source
	GetVoicePoolStats() voicepool.Stats
}

// Server wraps a gin engine bound to one Playback instance.
type Server struct {
	router *gin.Engine
	engine Playback
}

// New builds the control-plane router with request-ID tagging and
// structured request logging, mirroring the request-tracking middleware
// shape used elsewhere in the pack's gin services.
func New(engine Playback) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestTracking(), gin.Recovery())

	s := &Server{router: r, engine: engine}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) ListenAndServe(addr string) error {
	rflog.With("control").Info("control plane listening", "addr", addr)
	return s.router.Run(addr)
}

func requestTracking() gin.HandlerFunc {
	log := rflog.With("control")
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []interface{}{
			"request_id", requestID,
			"duration_ms", duration.Milliseconds(),
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request failed", fields...)
		default:
			log.Info("request completed", fields...)
		}
	}
}

func (s *Server) routes() {
	r := s.router

	r.GET("/health", s.handleHealth)

	transport := r.Group("/transport")
	{
		transport.POST("/play", s.handlePlay)
		transport.POST("/pause", s.handlePause)
		transport.POST("/stop", s.handleStop)
		transport.POST("/record", s.handleRecord)
		transport.POST("/seek", s.handleSeek)
		transport.GET("/status", s.handleTransportStatus)
	}

	mixer := r.Group("/mixer")
	{
		mixer.POST("/master-volume", s.handleSetMasterVolume)
		mixer.GET("/master-volume", s.handleGetMasterVolume)
		mixer.POST("/bus/:bus", s.handleSetBus)
		mixer.GET("/bus/:bus", s.handleGetBus)
	}

	voices := r.Group("/voices")
	{
		voices.POST("/stop-all", s.handleStopAllVoices)
		voices.POST("/stop-source", s.handleStopSourceVoices)
		voices.POST("/active-section", s.handleSetActiveSection)
		voices.GET("/active-section", s.handleGetActiveSection)
		voices.GET("/stats", s.handleVoiceStats)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePlay(c *gin.Context)   { s.engine.Play(); c.JSON(http.StatusOK, gin.H{"ok": true}) }
func (s *Server) handlePause(c *gin.Context)  { s.engine.Pause(); c.JSON(http.StatusOK, gin.H{"ok": true}) }
func (s *Server) handleStop(c *gin.Context)   { s.engine.Stop(); c.JSON(http.StatusOK, gin.H{"ok": true}) }
func (s *Server) handleRecord(c *gin.Context) { s.engine.Record(); c.JSON(http.StatusOK, gin.H{"ok": true}) }

func (s *Server) handleSeek(c *gin.Context) {
	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.engine.Seek(req.Seconds)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleTransportStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"position_seconds": s.engine.PositionSeconds(),
		"playing":          s.engine.IsPlaying(),
	})
}

func (s *Server) handleSetMasterVolume(c *gin.Context) {
	var req struct {
		Linear float64 `json:"linear"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.engine.SetMasterVolume(req.Linear)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleGetMasterVolume(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"linear": s.engine.MasterVolume()})
}

func (s *Server) handleSetBus(c *gin.Context) {
	bus, ok := parseBus(c)
	if !ok {
		return
	}
	var req struct {
		Volume *float64 `json:"volume"`
		Pan    *float64 `json:"pan"`
		Mute   *bool    `json:"mute"`
		Solo   *bool    `json:"solo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Volume != nil {
		s.engine.SetBusVolume(bus, *req.Volume)
	}
	if req.Pan != nil {
		s.engine.SetBusPan(bus, *req.Pan)
	}
	if req.Mute != nil {
		s.engine.SetBusMute(bus, *req.Mute)
	}
	if req.Solo != nil {
		s.engine.SetBusSolo(bus, *req.Solo)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleGetBus(c *gin.Context) {
	bus, ok := parseBus(c)
	if !ok {
		return
	}
	volume, pan, mute, solo, found := s.engine.GetBusState(bus)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown bus"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"volume": volume,
		"pan":    pan,
		"mute":   mute,
		"solo":   solo,
	})
}

func parseBus(c *gin.Context) (ids.BusID, bool) {
	raw := c.Param("bus")
	idx, err := busIndexFromName(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown bus name: " + raw})
		return 0, false
	}
	return idx, true
}

func (s *Server) handleStopAllVoices(c *gin.Context) {
	s.engine.StopAllOneShots()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleStopSourceVoices(c *gin.Context) {
	var req struct {
		Source string `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	src, err := sourceFromName(req.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.engine.StopSourceOneShots(src)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleSetActiveSection(c *gin.Context) {
	var req struct {
		Source string `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	src, err := sourceFromName(req.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.engine.SetActiveSection(src)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleGetActiveSection(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"source": s.engine.GetActiveSection().String()})
}

func (s *Server) handleVoiceStats(c *gin.Context) {
	stats := s.engine.GetVoicePoolStats()
	c.JSON(http.StatusOK, gin.H{
		"active":  stats.ActiveCount,
		"max":     stats.Max,
		"looping": stats.Looping,
		"by_source": stats.BySource,
		"by_bus":    stats.ByBus,
	})
}
