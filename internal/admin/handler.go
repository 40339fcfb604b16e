// Package admin exposes the authenticated write operations: forcing a
// reconciliation and refreshing pricing for an issue.
package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"comicshelf/internal/comics"
	"comicshelf/pkg/models"
)

type Reconciler interface {
	Reconcile(ctx context.Context, seriesTitle, issueNumber string) *models.Issue
}

type Pricer interface {
	IngestPricing(ctx context.Context, issue *models.Issue, grade float64)
}

type Handler struct {
	Reconciler Reconciler
	Pricer     Pricer
	Comics     *comics.Repo
}

func NewHandler(rec Reconciler, pricer Pricer, comicsRepo *comics.Repo) *Handler {
	return &Handler{Reconciler: rec, Pricer: pricer, Comics: comicsRepo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reconcile", h.reconcile)
	rg.POST("/issues/:id/reprice", h.reprice)
}

type reconcileRequest struct {
	SeriesTitle string `json:"series_title" binding:"required"`
	IssueNumber string `json:"issue_number" binding:"required"`
}

func (h *Handler) reconcile(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "series_title and issue_number required"})
		return
	}

	iss := h.Reconciler.Reconcile(c.Request.Context(), req.SeriesTitle, req.IssueNumber)
	if iss == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "could not reconcile comic"})
		return
	}
	c.JSON(http.StatusOK, iss)
}

type repriceRequest struct {
	Grade float64 `json:"grade" binding:"required"`
}

func (h *Handler) reprice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req repriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "grade required"})
		return
	}

	iss, err := h.Comics.GetIssue(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get issue failed"})
		return
	}
	if iss == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
		return
	}

	h.Pricer.IngestPricing(c.Request.Context(), iss, req.Grade)
	c.JSON(http.StatusAccepted, gin.H{"status": "pricing ingested", "issue_id": iss.ID})
}
