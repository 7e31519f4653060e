package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/repset/repset/internal/core"
	"github.com/repset/repset/internal/core/model"
	"github.com/repset/repset/internal/core/resolve"
)

// Parser is the pipeline surface the HTTP layer needs.
type Parser interface {
	Parse(ctx context.Context, raw string, opts core.Options) (*model.ResolvedWorkout, error)
}

type Server struct {
	parser       Parser
	logger       *slog.Logger
	parseTimeout time.Duration
}

// New builds the HTTP layer. parseTimeout bounds one whole parse run; zero
// disables the deadline.
func New(parser Parser, logger *slog.Logger, parseTimeout time.Duration) *Server {
	return &Server{parser: parser, logger: logger, parseTimeout: parseTimeout}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/parse", s.ParseWorkout)

	return r
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type ParseRequest struct {
	Text       string `json:"text" binding:"required"`
	Date       string `json:"date"`
	WeightUnit string `json:"weight_unit"`
	UserID     string `json:"user_id"`
}

func (s *Server) ParseWorkout(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be JSON with a non-empty 'text' field"})
		return
	}

	opts := core.Options{WeightUnit: req.WeightUnit, UserID: req.UserID}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "'date' must be YYYY-MM-DD"})
			return
		}
		opts.Date = date
	}

	ctx := c.Request.Context()
	if s.parseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.parseTimeout)
		defer cancel()
	}

	workout, err := s.parser.Parse(ctx, req.Text, opts)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, workout)
}

func (s *Server) respondError(c *gin.Context, err error) {
	var rejection *core.ValidationRejectionError
	if errors.As(err, &rejection) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rejection.Error()})
		return
	}

	var resErr *resolve.ResolutionError
	if errors.As(err, &resErr) {
		s.logger.Error("resolution failed", "name", resErr.Name, "error", resErr.Err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve exercise " + resErr.Name})
		return
	}

	var upstream *core.UpstreamError
	if errors.As(err, &upstream) {
		s.logger.Error("upstream failure", "stage", upstream.Stage, "error", upstream.Err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream service failed during " + upstream.Stage})
		return
	}

	s.logger.Error("parse failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to parse workout"})
}
