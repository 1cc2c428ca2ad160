package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/doctrack/doctrack/internal/document"
	"github.com/doctrack/doctrack/internal/document/service"
	"github.com/doctrack/doctrack/pkg/logger"
	"github.com/doctrack/doctrack/pkg/metrics"
)

type createRequest struct {
	Title      string        `json:"title" binding:"required,min=1,max=200"`
	DocType    string        `json:"doc_type" binding:"required,min=1,max=100"`
	ExpiryDate document.Date `json:"expiry_date"`
}

type renewRequest struct {
	NewExpiryDate document.Date `json:"new_expiry_date"`
}

// documentResponse adds the derived expiry state to the stored fields.
type documentResponse struct {
	*document.Document
	State document.State `json:"state"`
}

type documentHandler struct {
	svc service.Service
}

// RegisterDocumentRoutes mounts the /documents API on r. mutate, when non-nil,
// runs before every route that changes state (typically the documents-scope
// rate limiter).
func RegisterDocumentRoutes(r gin.IRouter, svc service.Service, mutate gin.HandlerFunc) {
	h := &documentHandler{svc: svc}
	chain := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		if mutate == nil {
			return []gin.HandlerFunc{fn}
		}
		return []gin.HandlerFunc{mutate, fn}
	}

	g := r.Group("/documents")
	g.GET("", h.list)
	g.POST("", chain(h.create)...)
	g.GET("/expiring", h.expiring)
	g.POST("/clear", chain(h.clear)...)
	g.GET("/:id", h.get)
	g.DELETE("/:id", chain(h.delete)...)
	g.POST("/:id/delete", chain(h.delete)...)
	g.POST("/:id/renew", chain(h.renew)...)
	g.GET("/:id/history", h.history)
}

func (h *documentHandler) view(d *document.Document, today document.Date) documentResponse {
	return documentResponse{Document: d, State: document.StateOf(d.ExpiryDate, today)}
}

func (h *documentHandler) respond(c *gin.Context, doc *document.Document) {
	c.JSON(http.StatusOK, h.view(doc, h.svc.Today()))
}

func (h *documentHandler) respondList(c *gin.Context, docs []*document.Document) {
	today := h.svc.Today()
	out := make([]documentResponse, len(docs))
	for i, d := range docs {
		out[i] = h.view(d, today)
	}
	c.JSON(http.StatusOK, out)
}

func (h *documentHandler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if req.ExpiryDate.IsZero() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "expiry_date is required"})
		return
	}
	doc, err := h.svc.Create(c.Request.Context(), req.Title, req.DocType, req.ExpiryDate)
	if err != nil {
		WriteError(c, err)
		return
	}
	logger.Debugf("created document %d (%s)", doc.ID, doc.DocType)
	h.respond(c, doc)
}

func (h *documentHandler) list(c *gin.Context) {
	var (
		docs []*document.Document
		err  error
	)
	if raw := c.Query("state"); raw != "" {
		state, perr := document.ParseState(raw)
		if perr != nil {
			WriteError(c, perr)
			return
		}
		docs, err = h.svc.ListByState(c.Request.Context(), state)
	} else {
		docs, err = h.svc.ListAll(c.Request.Context())
	}
	if err != nil {
		WriteError(c, err)
		return
	}
	h.respondList(c, docs)
}

func (h *documentHandler) expiring(c *gin.Context) {
	days, err := DaysParam(c)
	if err != nil {
		WriteError(c, err)
		return
	}
	docs, err := h.svc.ListExpiring(c.Request.Context(), days)
	if err != nil {
		WriteError(c, err)
		return
	}
	h.respondList(c, docs)
}

func (h *documentHandler) get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	doc, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	h.respond(c, doc)
}

func (h *documentHandler) renew(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req renewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if req.NewExpiryDate.IsZero() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "new_expiry_date is required"})
		return
	}
	doc, err := h.svc.Renew(c.Request.Context(), id, req.NewExpiryDate)
	if err != nil {
		WriteError(c, err)
		return
	}
	metrics.DocumentsRenewed.Inc()
	h.respond(c, doc)
}

func (h *documentHandler) delete(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, err := h.svc.Delete(c.Request.Context(), id); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

func (h *documentHandler) clear(c *gin.Context) {
	n, err := h.svc.ClearAll(c.Request.Context())
	if err != nil {
		WriteError(c, err)
		return
	}
	logger.Infof("cleared %d documents", n)
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "deleted": n})
}

func (h *documentHandler) history(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	entries, err := h.svc.History(c.Request.Context(), id)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "document id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// DaysParam reads the days query parameter (default 30) and checks its range.
func DaysParam(c *gin.Context) (int, error) {
	raw := c.DefaultQuery("days", strconv.Itoa(service.DefaultExpiringDays))
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: days must be an integer", document.ErrValidation)
	}
	if days < service.MinExpiringDays || days > service.MaxExpiringDays {
		return 0, fmt.Errorf("%w: days must be between %d and %d", document.ErrValidation, service.MinExpiringDays, service.MaxExpiringDays)
	}
	return days, nil
}

// WriteError maps a service error to its HTTP status and a {"detail": ...} body.
func WriteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, document.ErrValidation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
	case errors.Is(err, document.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Document not found"})
	case errors.Is(err, document.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"detail": "Rate limit exceeded"})
	case errors.Is(err, document.ErrSink):
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
	}
}
