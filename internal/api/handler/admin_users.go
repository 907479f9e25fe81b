package handler

import (
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/csoportal/internal/account"
	"github.com/jon4hz/csoportal/internal/api/auth"
	"github.com/jon4hz/csoportal/internal/api/models"
	"github.com/jon4hz/csoportal/internal/database"
)

// ListUsers lists accounts, optionally filtered by approval state, role and a search term.
func (h *Handler) ListUsers(c *gin.Context) {
	filter := database.UserFilter{
		Search: c.Query("search"),
		Role:   database.Role(c.Query("role")),
	}
	if raw := c.Query("approved"); raw != "" {
		approved, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "approved 값이 올바르지 않습니다.")
			return
		}
		filter.Approved = &approved
	}

	users, err := h.db.ListUsers(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"users": models.ToAdminUsers(users, h.cfg.Gravatar)})
}

func (h *Handler) ApproveUser(c *gin.Context) {
	h.setApproval(c, true)
}

func (h *Handler) RevokeUser(c *gin.Context) {
	h.setApproval(c, false)
}

func (h *Handler) setApproval(c *gin.Context, approved bool) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if !approved && id == auth.CurrentUser(c).ID {
		fail(c, http.StatusBadRequest, "자신의 승인은 취소할 수 없습니다.")
		return
	}
	user, err := h.accounts.SetApproval(c.Request.Context(), id, approved)
	if err != nil {
		handleError(c, err)
		return
	}
	msg := "승인이 취소되었습니다."
	if approved {
		msg = "승인되었습니다."
	}
	log.Info("changed user approval", "user_id", id, "approved", approved, "by", auth.CurrentUser(c).Email)
	success(c, http.StatusOK, gin.H{
		"message": msg,
		"user":    models.ToAdminUser(*user, h.cfg.Gravatar),
	})
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in account.AdminUpdateInput
	if !bindJSON(c, &in) {
		return
	}
	if id == auth.CurrentUser(c).ID && in.Role != string(database.RoleAdmin) {
		fail(c, http.StatusBadRequest, "자신의 관리자 권한은 해제할 수 없습니다.")
		return
	}
	user, err := h.accounts.UpdateUser(c.Request.Context(), id, in)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"user": models.ToAdminUser(*user, h.cfg.Gravatar)})
}

// ResetUserPassword sets a password chosen by the admin.
func (h *Handler) ResetUserPassword(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	if !bindJSON(c, &body) {
		return
	}
	if err := h.accounts.SetPassword(c.Request.Context(), id, body.Password); err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"message": "비밀번호가 재설정되었습니다."})
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if id == auth.CurrentUser(c).ID {
		fail(c, http.StatusBadRequest, "자신의 계정은 삭제할 수 없습니다.")
		return
	}
	if err := h.accounts.DeleteUser(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"message": "삭제되었습니다."})
}
