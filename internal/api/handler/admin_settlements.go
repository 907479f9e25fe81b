package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/csoportal/internal/api/auth"
)

// upload is a spreadsheet posted as multipart form.
type upload struct {
	file      io.ReadCloser
	overrides map[string]string
}

// readUpload reads the "file" and optional "mapping" form fields and writes a 400 response
// on failure. The mapping is a JSON object of header to column key.
func (h *Handler) readUpload(c *gin.Context) (*upload, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes())

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "파일이 너무 큽니다.")
			return nil, false
		}
		fail(c, http.StatusBadRequest, "엑셀 파일을 첨부해 주세요.")
		return nil, false
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		fail(c, http.StatusBadRequest, "xlsx 파일만 업로드할 수 있습니다.")
		return nil, false
	}

	var overrides map[string]string
	if raw := c.PostForm("mapping"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			fail(c, http.StatusBadRequest, "열 매핑 형식이 올바르지 않습니다.")
			return nil, false
		}
	}

	f, err := header.Open()
	if err != nil {
		handleError(c, err)
		return nil, false
	}
	return &upload{file: f, overrides: overrides}, true
}

// PreviewUpload shows the detected header mapping and the first rows of an upload.
func (h *Handler) PreviewUpload(c *gin.Context) {
	up, ok := h.readUpload(c)
	if !ok {
		return
	}
	defer up.file.Close() //nolint:errcheck

	preview, err := h.settlements.Preview(c.Request.Context(), up.file, up.overrides)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"preview": preview})
}

// UploadSettlements replaces the rows of a month with the uploaded sheet.
func (h *Handler) UploadSettlements(c *gin.Context) {
	up, ok := h.readUpload(c)
	if !ok {
		return
	}
	defer up.file.Close() //nolint:errcheck

	month := c.PostForm("month")
	result, err := h.settlements.Import(c.Request.Context(), up.file, month, up.overrides)
	if err != nil {
		handleError(c, err)
		return
	}
	log.Info("settlements uploaded", "month", result.Month, "rows", result.Inserted, "by", auth.CurrentUser(c).Email)
	success(c, http.StatusOK, gin.H{
		"message": "정산 데이터가 업로드되었습니다.",
		"result":  result,
	})
}

func (h *Handler) DeleteMonth(c *gin.Context) {
	deleted, err := h.settlements.DeleteMonth(c.Request.Context(), c.Param("month"))
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{
		"message": "삭제되었습니다.",
		"deleted": deleted,
	})
}
