// Package api serves the voting workflow over HTTP and streams state
// changes over a websocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"secret-evoting/service"
	"secret-evoting/workflow"
)

// Service is the part of the e-voting service the API drives.
// *service.EVotingService implements it.
type Service interface {
	State() workflow.State
	Info() service.Info
	Reconnect() error
	Subscribe() (<-chan workflow.State, func())
	Search(ctx context.Context, address string) (workflow.State, error)
	Refresh(ctx context.Context) (workflow.State, error)
	Return(ctx context.Context) (workflow.State, error)
	Vote(ctx context.Context, candidateID int) (workflow.State, error)
	EditDraft(ctx context.Context, edit workflow.DraftEdited) (workflow.State, error)
	Create(ctx context.Context) (workflow.State, error)
	DismissAlert(ctx context.Context) (workflow.State, error)
}

// Options configures a Server.
type Options struct {
	// Gatherer backs /metrics. The route is left out when nil.
	Gatherer prometheus.Gatherer
	Metrics  RequestObserver
	// RateLimit is applied to every route when set.
	RateLimit *RateLimiter
	// ActionTimeout bounds how long a request waits for the workflow to settle.
	ActionTimeout time.Duration
	Now           func() time.Time
}

type Server struct {
	svc      Service
	opts     Options
	logger   *zap.Logger
	router   *gin.Engine
	upgrader websocket.Upgrader
}

type SearchRequest struct {
	Address string `json:"address"`
}

type VoteRequest struct {
	CandidateID *int `json:"candidate_id" binding:"required"`
}

// DraftRequest edits the fields that are present. CloseDate is
// YYYY-MM-DD and CloseTime hh:mm or hh:mm:ss.
type DraftRequest struct {
	Title      *string  `json:"title"`
	Candidates []string `json:"candidates"`
	Voters     []string `json:"voters"`
	CloseDate  *string  `json:"close_date"`
	CloseTime  *string  `json:"close_time"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func NewServer(svc Service, opts Options, logger *zap.Logger) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 2 * time.Minute
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), Logger(logger, opts.Metrics))
	if opts.RateLimit != nil {
		router.Use(opts.RateLimit.Middleware())
	}

	s := &Server{
		svc:    svc,
		opts:   opts,
		logger: logger,
		router: router,
		upgrader: websocket.Upgrader{
			// The page may be served from anywhere.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v := s.router.Group("/api")
	v.GET("/state", s.handleGetState)
	v.GET("/info", s.handleGetInfo)
	v.POST("/wallet/reconnect", s.handleReconnect)
	v.POST("/search", s.handleSearch)
	v.POST("/refresh", s.handleRefresh)
	v.POST("/return", s.handleReturn)
	v.POST("/vote", s.handleVote)
	v.PUT("/draft", s.handleEditDraft)
	v.POST("/create", s.handleCreate)
	v.DELETE("/alert", s.handleDismissAlert)
	v.GET("/events", s.handleEvents)

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.opts.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(stopCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) view(st workflow.State) workflow.View {
	return workflow.NewView(st, s.opts.Now())
}

func (s *Server) actionContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.opts.ActionTimeout)
}

func (s *Server) respond(c *gin.Context, st workflow.State, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.view(st))
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrVoteUnavailable),
		errors.Is(err, workflow.ErrUnknownCandidate),
		errors.Is(err, workflow.ErrWalletNotConnected):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrStopped):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{Error: err.Error(), RequestID: GetRequestID(c)})
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, RequestID: GetRequestID(c)})
}

func (s *Server) handleGetState(c *gin.Context) {
	c.JSON(http.StatusOK, s.view(s.svc.State()))
}

func (s *Server) handleGetInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Info())
}

func (s *Server) handleReconnect(c *gin.Context) {
	if err := s.svc.Reconnect(); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reconnecting"})
}

func (s *Server) handleSearch(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body")
		return
	}
	ctx, cancel := s.actionContext(c)
	defer cancel()
	st, err := s.svc.Search(ctx, req.Address)
	s.respond(c, st, err)
}

func (s *Server) handleRefresh(c *gin.Context) {
	ctx, cancel := s.actionContext(c)
	defer cancel()
	st, err := s.svc.Refresh(ctx)
	s.respond(c, st, err)
}

func (s *Server) handleReturn(c *gin.Context) {
	st, err := s.svc.Return(c.Request.Context())
	s.respond(c, st, err)
}

func (s *Server) handleVote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body")
		return
	}
	ctx, cancel := s.actionContext(c)
	defer cancel()
	st, err := s.svc.Vote(ctx, *req.CandidateID)
	s.respond(c, st, err)
}

func (s *Server) handleEditDraft(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "Invalid request body")
		return
	}
	edit := workflow.DraftEdited{
		Title:      req.Title,
		Candidates: req.Candidates,
		Voters:     req.Voters,
		CloseTime:  req.CloseTime,
	}
	if req.CloseDate != nil {
		d, err := time.Parse("2006-01-02", *req.CloseDate)
		if err != nil {
			s.badRequest(c, "close_date must be YYYY-MM-DD")
			return
		}
		edit.CloseDate = &d
	}
	st, err := s.svc.EditDraft(c.Request.Context(), edit)
	s.respond(c, st, err)
}

func (s *Server) handleCreate(c *gin.Context) {
	ctx, cancel := s.actionContext(c)
	defer cancel()
	st, err := s.svc.Create(ctx)
	s.respond(c, st, err)
}

func (s *Server) handleDismissAlert(c *gin.Context) {
	st, err := s.svc.DismissAlert(c.Request.Context())
	s.respond(c, st, err)
}
