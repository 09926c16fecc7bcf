package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/credence/internal/model"
	"github.com/ppiankov/credence/internal/store"
)

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ScoreRequest is the body of POST /v1/score. Text may be empty but must be present.
type ScoreRequest struct {
	ID       string   `json:"id"`
	Text     *string  `json:"text" binding:"required"`
	Domain   string   `json:"domain"`
	Sources  []string `json:"sources"`
	UserRole string   `json:"user_role"`
}

func (r ScoreRequest) toModel() model.Request {
	return model.Request{
		ID:       r.ID,
		Text:     *r.Text,
		Domain:   strings.TrimSpace(r.Domain),
		Sources:  trimmed(r.Sources),
		UserRole: strings.TrimSpace(r.UserRole),
	}
}

// OutcomeRequest labels a past assessment
type OutcomeRequest struct {
	Correct *bool `json:"correct" binding:"required"`
}

// PackSummary describes a domain pack
type PackSummary struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description,omitempty"`
	Expertise   float64  `json:"expertise"`
	Primary     int      `json:"primary_authorities"`
	Secondary   int      `json:"secondary_authorities"`
	Facts       int      `json:"facts"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.deps.Version})
}

func (s *Server) handleScore(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	a, err := s.deps.Scorer.ScoreResponse(c.Request.Context(), req.toModel())
	if err != nil {
		s.deps.Logger.Warn("scoring aborted", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "SCORING_ABORTED"})
		return
	}

	c.JSON(http.StatusOK, a)
}

func (s *Server) handleOutcome(c *gin.Context) {
	if s.deps.History == nil {
		historyDisabled(c)
		return
	}

	var req OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	id := c.Param("id")
	if err := s.deps.History.RecordOutcome(c.Request.Context(), id, *req.Correct); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "unknown assessment " + id, Code: "NOT_FOUND"})
			return
		}
		s.deps.Logger.Error("recording outcome failed", zap.String("assessment", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "recording outcome failed", Code: "STORE_FAILED"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "correct": *req.Correct})
}

func (s *Server) handleCalibration(c *gin.Context) {
	if s.deps.History == nil || s.deps.Monitor == nil {
		historyDisabled(c)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer", Code: "INVALID_LIMIT"})
			return
		}
		limit = n
	}

	report, err := s.deps.Monitor.Run(c.Request.Context(), s.deps.History, limit)
	if err != nil {
		s.deps.Logger.Error("calibration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "calibration failed", Code: "CALIBRATION_FAILED"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) handlePacks(c *gin.Context) {
	packs := s.deps.Packs.Packs()
	out := make([]PackSummary, 0, len(packs))
	for _, p := range packs {
		out = append(out, PackSummary{
			Name:        p.Name,
			Aliases:     p.Aliases,
			Description: p.Description,
			Expertise:   p.Expertise,
			Primary:     len(p.Authorities.Primary),
			Secondary:   len(p.Authorities.Secondary),
			Facts:       len(p.Facts),
		})
	}
	c.JSON(http.StatusOK, out)
}

func badBody(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large", Code: "BODY_TOO_LARGE"})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Code: "INVALID_REQUEST"})
}

func historyDisabled(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "history store is disabled", Code: "HISTORY_DISABLED"})
}

func trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
