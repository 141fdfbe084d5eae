package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"site_registry/internal/domain"
	"site_registry/internal/service"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler handles site HTTP requests
type Handler struct {
	svc *service.SiteService
}

// NewHandler creates a new handler
func NewHandler(svc *service.SiteService) *Handler {
	return &Handler{svc: svc}
}

// ListSites handles GET /api/sites
func (h *Handler) ListSites(c *gin.Context) {
	sites, err := h.svc.List(c.Request.Context(), c.Query("status"))
	if errors.Is(err, domain.ErrInvalidEnum) {
		writeMessage(c, http.StatusBadRequest, "Invalid status filter")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, sites)
}

// GetSite handles GET /api/sites/:id
func (h *Handler) GetSite(c *gin.Context) {
	id, ok := siteID(c)
	if !ok {
		return
	}

	site, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, site)
}

// CreateSite handles POST /api/sites
func (h *Handler) CreateSite(c *gin.Context) {
	raw, ok := bindObject(c)
	if !ok {
		return
	}

	site, err := h.svc.Create(c.Request.Context(), raw, actor(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, site)
}

// UpdateSite handles PUT /api/sites/:id
func (h *Handler) UpdateSite(c *gin.Context) {
	id, ok := siteID(c)
	if !ok {
		return
	}
	raw, ok := bindObject(c)
	if !ok {
		return
	}

	site, err := h.svc.Update(c.Request.Context(), id, raw, actor(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, site)
}

// UpdatePowerSource handles PUT /api/sites/:id/power/:kind
func (h *Handler) UpdatePowerSource(c *gin.Context) {
	id, ok := siteID(c)
	if !ok {
		return
	}
	raw, ok := bindObject(c)
	if !ok {
		return
	}

	site, err := h.svc.UpdatePowerSource(c.Request.Context(), id, c.Param("kind"), raw, actor(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, site)
}

// UpdateStatus handles PATCH /api/sites/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := siteID(c)
	if !ok {
		return
	}
	raw, ok := bindObject(c)
	if !ok {
		return
	}

	status, _ := raw["status"].(string)
	site, err := h.svc.UpdateStatus(c.Request.Context(), id, status, actor(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, site)
}

// DeleteSite handles DELETE /api/sites/:id
func (h *Handler) DeleteSite(c *gin.Context) {
	id, ok := siteID(c)
	if !ok {
		return
	}

	deleted, err := h.svc.Delete(c.Request.Context(), id, actor(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Site deleted successfully",
		"site":    deleted,
	})
}

// GetHistory handles GET /api/sites/:id/history
func (h *Handler) GetHistory(c *gin.Context) {
	id, ok := siteID(c)
	if !ok {
		return
	}

	limit := getIntParam(c, "limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	events, err := h.svc.History(c.Request.Context(), id, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// ExportSites handles GET /api/sites/export
func (h *Handler) ExportSites(c *gin.Context) {
	data, err := h.svc.Export(c.Request.Context(), c.Query("status"))
	if errors.Is(err, domain.ErrInvalidEnum) {
		writeMessage(c, http.StatusBadRequest, "Invalid status filter")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	filename := fmt.Sprintf("sites-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// GetStats handles GET /api/admin/stats
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats())
}

// siteID reads the :id path parameter; a non-numeric id is an unknown site
func siteID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		writeMessage(c, http.StatusNotFound, "Site not found")
		return 0, false
	}
	return id, true
}

func bindObject(c *gin.Context) (map[string]interface{}, bool) {
	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil || raw == nil {
		writeMessage(c, http.StatusBadRequest, "Invalid JSON")
		return nil, false
	}
	return raw, true
}

func actor(c *gin.Context) string {
	if identity, ok := currentIdentity(c); ok {
		return identity.Username
	}
	return ""
}

// Helper function to get integer query parameter
func getIntParam(c *gin.Context, key string, defaultValue int) int {
	if str := c.Query(key); str != "" {
		if val, err := strconv.Atoi(str); err == nil {
			return val
		}
	}
	return defaultValue
}
