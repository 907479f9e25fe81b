// Package handler implements the JSON endpoints of the portal.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/csoportal/internal/account"
	"github.com/jon4hz/csoportal/internal/api/auth"
	"github.com/jon4hz/csoportal/internal/cache"
	"github.com/jon4hz/csoportal/internal/columnmap"
	"github.com/jon4hz/csoportal/internal/config"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/excel"
	"github.com/jon4hz/csoportal/internal/notify/email"
	"github.com/jon4hz/csoportal/internal/scheduler"
	"github.com/jon4hz/csoportal/internal/settings"
	"github.com/jon4hz/csoportal/internal/settlement"
)

// Deps are the services used by the handlers.
type Deps struct {
	Config      *config.Config
	DB          database.DB
	Accounts    *account.Service
	Settlements *settlement.Service
	Settings    *settings.Service
	Mail        *email.Service
	Cache       *cache.SettingsCache
	Scheduler   *scheduler.Scheduler
}

type Handler struct {
	cfg         *config.Config
	db          database.DB
	accounts    *account.Service
	settlements *settlement.Service
	settings    *settings.Service
	mail        *email.Service
	cache       *cache.SettingsCache
	scheduler   *scheduler.Scheduler
}

func New(deps Deps) *Handler {
	return &Handler{
		cfg:         deps.Config,
		db:          deps.DB,
		accounts:    deps.Accounts,
		settlements: deps.Settlements,
		settings:    deps.Settings,
		mail:        deps.Mail,
		cache:       deps.Cache,
		scheduler:   deps.Scheduler,
	}
}

// Health reports that the server is up.
func (h *Handler) Health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func success(c *gin.Context, status int, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}

// errorResponses maps service errors to a status and a message for the client.
var errorResponses = []struct {
	err    error
	status int
	msg    string
}{
	{account.ErrDuplicateBusinessNumber, http.StatusConflict, "이미 가입된 사업자번호입니다."},
	{account.ErrInvalidCredentials, http.StatusUnauthorized, "사업자번호 또는 비밀번호가 올바르지 않습니다."},
	{account.ErrNotApproved, http.StatusForbidden, "관리자 승인 후 이용할 수 있습니다."},
	{account.ErrTokenExpired, http.StatusBadRequest, "비밀번호 재설정 링크가 만료되었습니다."},
	{account.ErrTokenInvalid, http.StatusBadRequest, "유효하지 않은 비밀번호 재설정 링크입니다."},
	{account.ErrPasswordTooShort, http.StatusBadRequest, "비밀번호는 6자 이상이어야 합니다."},
	{account.ErrPasswordTooLong, http.StatusBadRequest, "비밀번호가 너무 깁니다."},
	{account.ErrInvalidBusinessNumber, http.StatusBadRequest, "사업자번호는 숫자 10자리여야 합니다."},
	{account.ErrUserNotFound, http.StatusNotFound, "사용자를 찾을 수 없습니다."},
	{settlement.ErrInvalidMonth, http.StatusBadRequest, "정산월은 YYYY-MM 형식이어야 합니다."},
	{settlement.ErrNoRows, http.StatusBadRequest, "가져올 수 있는 정산 행이 없습니다."},
	{settlement.ErrNoBusinessNumber, http.StatusForbidden, "forbidden"},
	{excel.ErrInvalidWorkbook, http.StatusBadRequest, "엑셀(xlsx) 파일을 읽을 수 없습니다."},
	{excel.ErrNoSheet, http.StatusBadRequest, "엑셀 파일에 시트가 없습니다."},
	{excel.ErrNoHeader, http.StatusBadRequest, "헤더 행을 찾을 수 없습니다."},
	{columnmap.ErrMissingBusinessNumber, http.StatusBadRequest, "사업자번호 열이 매핑되지 않았습니다."},
	{email.ErrBulkInProgress, http.StatusConflict, "이미 발송 작업이 진행 중입니다."},
	{email.ErrNoRecipients, http.StatusBadRequest, "발송 대상이 없습니다."},
	{email.ErrEmptyTemplate, http.StatusBadRequest, "제목과 본문을 입력해 주세요."},
	{scheduler.ErrJobNotFound, http.StatusNotFound, "작업을 찾을 수 없습니다."},
	{database.ErrNotFound, http.StatusNotFound, "찾을 수 없습니다."},
	{database.ErrDuplicate, http.StatusConflict, "이미 존재합니다."},
}

// detailedErrors are reported with their own message.
var detailedErrors = []error{
	columnmap.ErrUnknownField,
	columnmap.ErrDuplicateField,
	columnmap.ErrUnknownHeader,
	settings.ErrUnknownSetting,
	settings.ErrInvalidDisplayName,
	settings.ErrInvalidColumnOrder,
}

// handleError writes the response for a service error.
func handleError(c *gin.Context, err error) {
	if errors.Is(err, account.ErrValidation) {
		fail(c, http.StatusBadRequest, strings.TrimPrefix(err.Error(), account.ErrValidation.Error()+": "))
		return
	}
	for _, e := range detailedErrors {
		if errors.Is(err, e) {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	for _, r := range errorResponses {
		if errors.Is(err, r.err) {
			fail(c, r.status, r.msg)
			return
		}
	}
	log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	fail(c, http.StatusInternalServerError, "요청을 처리하지 못했습니다.")
}

func parseUintParam(param string) (uint, error) {
	var id uint64
	var err error
	if id, err = strconv.ParseUint(param, 10, 0); err != nil {
		return 0, err
	}
	return safecast.Convert[uint](id)
}

// idParam reads the :id path parameter and writes a 400 response when it is invalid.
func idParam(c *gin.Context) (uint, bool) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, "잘못된 ID입니다.")
		return 0, false
	}
	return id, true
}

// queryInt reads a non-negative integer query parameter, capped at limit.
func queryInt(c *gin.Context, name string, def, limit int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := parseUintParam(raw)
	if err != nil {
		return 0, err
	}
	n, err := safecast.Convert[int](v)
	if err != nil {
		return 0, err
	}
	return min(n, limit), nil
}

// bindJSON decodes the request body and writes a 400 response on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		fail(c, http.StatusBadRequest, "요청 형식이 올바르지 않습니다.")
		return false
	}
	return true
}

func viewer(c *gin.Context) settlement.Viewer {
	user := auth.CurrentUser(c)
	return settlement.Viewer{BusinessNumber: user.BusinessNumber, Admin: user.IsAdmin}
}
