package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/csoportal/internal/account"
	"github.com/jon4hz/csoportal/internal/api/auth"
	"github.com/jon4hz/csoportal/internal/api/models"
)

// AuthConfig tells the login page which sign in methods exist.
func (h *Handler) AuthConfig(c *gin.Context) {
	oidc := h.cfg.OIDC
	data := gin.H{"oidcEnabled": oidc != nil && oidc.Enabled}
	if oidc != nil && oidc.Enabled {
		data["oidcName"] = oidc.Name
	}
	success(c, http.StatusOK, data)
}

func (h *Handler) Register(c *gin.Context) {
	var in account.RegisterInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.accounts.Register(c.Request.Context(), in)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusCreated, gin.H{
		"message": "가입 신청이 완료되었습니다. 관리자 승인 후 로그인할 수 있습니다.",
		"user":    models.ToUser(user, models.AuthPassword, h.cfg.Gravatar),
	})
}

func (h *Handler) Login(c *gin.Context) {
	var in account.LoginInput
	if !bindJSON(c, &in) {
		return
	}
	result, err := h.accounts.Login(c.Request.Context(), in)
	if err != nil {
		// unapproved accounts get the same answer as wrong credentials
		if errors.Is(err, account.ErrNotApproved) {
			err = account.ErrInvalidCredentials
		}
		handleError(c, err)
		return
	}
	if err := auth.Login(c, result.User); err != nil {
		log.Error("failed to save session", "error", err)
		fail(c, http.StatusInternalServerError, "로그인 세션을 저장하지 못했습니다.")
		return
	}
	success(c, http.StatusOK, gin.H{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      models.ToUser(result.User, models.AuthPassword, h.cfg.Gravatar),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := auth.Logout(c); err != nil {
		log.Error("failed to clear session", "error", err)
	}
	success(c, http.StatusOK, gin.H{"message": "로그아웃되었습니다."})
}

func (h *Handler) Me(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"user": auth.CurrentUser(c)})
}

// passwordUser returns the current user if it is a portal account. SSO admins have none.
func passwordUser(c *gin.Context) (*models.User, bool) {
	user := auth.CurrentUser(c)
	if user.ID == 0 {
		fail(c, http.StatusBadRequest, "SSO 계정은 포털에서 변경할 수 없습니다.")
		return nil, false
	}
	return user, true
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	user, ok := passwordUser(c)
	if !ok {
		return
	}
	var in account.ProfileInput
	if !bindJSON(c, &in) {
		return
	}
	updated, err := h.accounts.UpdateProfile(c.Request.Context(), user.ID, in)
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"user": models.ToUser(updated, user.AuthMethod, h.cfg.Gravatar)})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	user, ok := passwordUser(c)
	if !ok {
		return
	}
	var in account.ChangePasswordInput
	if !bindJSON(c, &in) {
		return
	}
	if err := h.accounts.ChangePassword(c.Request.Context(), user.ID, in); err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			fail(c, http.StatusBadRequest, "현재 비밀번호가 올바르지 않습니다.")
			return
		}
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"message": "비밀번호가 변경되었습니다."})
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var in account.ResetRequestInput
	if !bindJSON(c, &in) {
		return
	}
	if err := h.accounts.RequestPasswordReset(c.Request.Context(), in); err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{
		"message": "입력하신 정보가 일치하면 비밀번호 재설정 메일이 발송됩니다.",
	})
}

func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var in account.ResetConfirmInput
	if !bindJSON(c, &in) {
		return
	}
	if err := h.accounts.ConfirmPasswordReset(c.Request.Context(), in); err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"message": "비밀번호가 재설정되었습니다. 새 비밀번호로 로그인해 주세요."})
}
