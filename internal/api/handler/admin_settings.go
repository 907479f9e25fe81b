package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/csoportal/internal/api/models"
	"github.com/jon4hz/csoportal/internal/database"
)

type columnUpdateRequest struct {
	DisplayName *string `json:"displayName"`
	Visible     *bool   `json:"visible"`
}

func (h *Handler) UpdateColumn(c *gin.Context) {
	var req columnUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	column, err := h.settings.UpdateColumn(c.Request.Context(), c.Param("key"), database.ColumnSettingUpdate{
		DisplayName: req.DisplayName,
		IsVisible:   req.Visible,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"column": models.ToColumn(*column)})
}

// ReorderColumns sets the display order of all columns.
func (h *Handler) ReorderColumns(c *gin.Context) {
	var req struct {
		Keys []string `json:"keys"`
	}
	if !bindJSON(c, &req) {
		return
	}
	if err := h.settings.ReorderColumns(c.Request.Context(), req.Keys); err != nil {
		handleError(c, err)
		return
	}
	columns, err := h.settings.Columns(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"columns": models.ToColumns(columns)})
}

// AdminCompany returns every company setting including the notification templates.
func (h *Handler) AdminCompany(c *gin.Context) {
	company, err := h.settings.Company(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"company": company})
}

func (h *Handler) UpdateCompany(c *gin.Context) {
	var values map[string]string
	if !bindJSON(c, &values) {
		return
	}
	company, err := h.settings.UpdateCompany(c.Request.Context(), values)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{
		"message": "저장되었습니다.",
		"company": company,
	})
}

func (h *Handler) CacheStats(c *gin.Context) {
	success(c, http.StatusOK, gin.H{
		"type":  h.cache.Columns.GetType(),
		"stats": h.cache.GetStats(),
	})
}

// ClearCache drops every cached setting.
func (h *Handler) ClearCache(c *gin.Context) {
	h.cache.ClearAll(c.Request.Context())
	success(c, http.StatusOK, gin.H{"message": "캐시가 비워졌습니다."})
}
