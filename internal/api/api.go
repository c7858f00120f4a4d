package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/rankowl/rank-tracker/internal/credentials"
	"github.com/rankowl/rank-tracker/internal/domain/models"
	"github.com/rankowl/rank-tracker/internal/queue"
	"github.com/rankowl/rank-tracker/internal/repositories"
	"github.com/rankowl/rank-tracker/internal/services"
)

// Server is the thin ops surface: manual enqueueing (still subject to the
// queue's dedup rule), queue and credential stats, and read-only tier views
// for reporting.
type Server struct {
	queue    *queue.Queue
	keywords *repositories.Keywords
	adSlots  *repositories.AdSlots
	tiers    *repositories.Tiers
	pools    map[string]*credentials.Pool
	tracker  *services.CycleTracker
	srv      *http.Server
}

func NewServer(port int, jobQueue *queue.Queue, keywords *repositories.Keywords,
	adSlots *repositories.AdSlots, tiers *repositories.Tiers,
	pools map[string]*credentials.Pool, tracker *services.CycleTracker) *Server {

	s := &Server{
		queue:    jobQueue,
		keywords: keywords,
		adSlots:  adSlots,
		tiers:    tiers,
		pools:    pools,
		tracker:  tracker,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", s.health)
	router.GET("/queue/stats", s.queueStats)
	router.GET("/credentials/stats", s.credentialStats)
	router.GET("/cycle/status", s.cycleStatus)

	router.POST("/keywords", s.createKeyword)
	router.PATCH("/keywords/:id/active", s.setKeywordActive)
	router.POST("/keywords/:id/collect", s.collectKeyword)
	router.POST("/adslots/:id/collect", s.collectAdSlot)

	router.GET("/keywords/:id/ranks/current", s.currentRanks)
	router.GET("/keywords/:id/ranks/daily", s.dailyRanks)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	return s
}

func (s *Server) Run() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server failed: %v", err)
		}
	}()
	log.Infof("api server listening on %v", s.srv.Addr)
}

func (s *Server) Stop(ctx context.Context) {
	if err := s.srv.Shutdown(ctx); err != nil {
		log.Errorf("api server shutdown: %v", err)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) queueStats(c *gin.Context) {
	counts, err := s.queue.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read queue"})
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) cycleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.tracker.Status())
}

func (s *Server) credentialStats(c *gin.Context) {
	stats := make(map[string][]credentials.Stat, len(s.pools))
	for provider, pool := range s.pools {
		stats[provider] = pool.Stats()
	}
	c.JSON(http.StatusOK, stats)
}

type createKeywordRequest struct {
	Text     string `json:"text" binding:"required"`
	Type     string `json:"type" binding:"required"`
	Priority int    `json:"priority"`
}

func (s *Server) createKeyword(c *gin.Context) {

	var req createKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	keywordType, err := models.ToKeywordType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	keyword := models.NewKeyword(req.Text, keywordType, req.Priority)
	if err = s.keywords.Add(c.Request.Context(), *keyword); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create keyword"})
		return
	}
	c.Status(http.StatusCreated)
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (s *Server) setKeywordActive(c *gin.Context) {

	id, err := intParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req setActiveRequest
	if err = c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err = s.keywords.SetActive(c.Request.Context(), id, *req.Active); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update keyword"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) collectKeyword(c *gin.Context) {

	id, err := intParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	keyword, err := s.keywords.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "keyword not found"})
		return
	}

	inserted, err := s.queue.EnqueueKeyword(c.Request.Context(), *keyword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"enqueued": inserted})
}

func (s *Server) collectAdSlot(c *gin.Context) {

	id, err := intParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	target, err := s.adSlots.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ad slot not found"})
		return
	}

	keyword, err := s.keywords.GetByID(c.Request.Context(), target.KeywordID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "work keyword not found"})
		return
	}

	inserted, err := s.queue.EnqueueAdSlot(c.Request.Context(), *target, keyword.Text)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"enqueued": inserted})
}

func (s *Server) currentRanks(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	rows, err := s.tiers.CurrentFor(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read current tier"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) dailyRanks(c *gin.Context) {
	id, err := intParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	date := c.DefaultQuery("date", time.Now().Format("2006-01-02"))
	rows, err := s.tiers.DailyFor(c.Request.Context(), id, date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read daily tier"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func intParam(c *gin.Context, name string) (int, error) {
	return strconv.Atoi(c.Param(name))
}
