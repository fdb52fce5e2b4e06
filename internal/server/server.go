// Package server exposes the research pipeline and the truth gate over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/truthgate/internal/gate"
	"github.com/ppiankov/truthgate/internal/model"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Researcher answers one research request
type Researcher interface {
	Run(ctx context.Context, req model.Request) *model.Response
}

// Server serves the HTTP API
type Server struct {
	researcher Researcher
	cfg        model.ServerConfig
	version    string
}

// NewServer creates a server around researcher
func NewServer(researcher Researcher, cfg model.ServerConfig, version string) *Server {
	return &Server{researcher: researcher, cfg: cfg, version: version}
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// GateResponse is the body of a gate replay
type GateResponse struct {
	Text              string                  `json:"text"`
	SupportedClaimIDs []string                `json:"supported_claim_ids"`
	Abstained         bool                    `json:"abstained"`
	AbstainReason     *model.AbstainReason    `json:"abstain_reason,omitempty"`
	Gate              []model.SentenceVerdict `json:"gate"`
}

// SetupRouter builds the gin engine
func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", s.Health)
	v1 := r.Group("/v1")
	v1.POST("/research", s.Research)
	v1.POST("/gate", s.Gate)

	return r
}

// Run listens on the configured address until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Mode != "" {
		gin.SetMode(s.cfg.Mode)
	}
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server: shutdown")
		}
		return nil
	}
}

// Health reports liveness
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.version})
}

// Research runs one research request. Failures inside the pipeline come
// back as abstentions with status 200.
func (s *Server) Research(c *gin.Context) {
	var req model.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	req.Molecule = strings.TrimSpace(req.Molecule)
	if req.Molecule == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "molecule is required"})
		return
	}
	switch strings.ToLower(req.Framing) {
	case "", model.FramingDefinitive, model.FramingExploratory:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "framing must be definitive or exploratory"})
		return
	}

	c.JSON(http.StatusOK, s.researcher.Run(c.Request.Context(), req))
}

// Gate replays the truth gate over a narrative and claim table
func (s *Server) Gate(c *gin.Context) {
	var replay gate.Replay
	if err := c.ShouldBindJSON(&replay); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	res := replay.Run()
	out := GateResponse{
		Text:              res.Text,
		SupportedClaimIDs: res.SupportedClaimIDs,
		Abstained:         res.Abstained,
		Gate:              res.Verdicts,
	}
	if out.SupportedClaimIDs == nil {
		out.SupportedClaimIDs = []string{}
	}
	if res.Abstained {
		reason := model.ReasonUnsupportedNarrative
		out.AbstainReason = &reason
	}
	c.JSON(http.StatusOK, out)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zap.L().Named("http").Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
