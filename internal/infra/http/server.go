package http

import (
	"net/http"

	"bountyd/internal/config"
	"bountyd/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	lifecycle *usecase.Lifecycle
	packager  *usecase.Packager
	store     usecase.ContentStore
}

type ServerDeps struct {
	Lifecycle *usecase.Lifecycle
	Packager  *usecase.Packager
	Store     usecase.ContentStore
}

func NewServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:       cfg,
		r:         r,
		lifecycle: deps.Lifecycle,
		packager:  deps.Packager,
		store:     deps.Store,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/tasks", s.handleCreateTask)
		v1.GET("/tasks", s.handleListTasks)
		v1.GET("/tasks/:task_id", s.handleGetTask)
		v1.POST("/tasks/:task_id/claim", s.handleClaimTask)
		v1.POST("/tasks/:task_id/submit", s.handleSubmitEvidence)
		v1.POST("/tasks/:task_id/payout", s.handlePayout)
		v1.POST("/tasks/:task_id/reopen", s.handleReopen)
		v1.GET("/reports/:cid", s.handleGetReport)
	}
}

func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
