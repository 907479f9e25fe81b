package handler

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jon4hz/csoportal/internal/api/models"
	"github.com/jon4hz/csoportal/internal/database"
	"github.com/jon4hz/csoportal/internal/excel"
	"github.com/jon4hz/csoportal/internal/settlement"
)

func settlementQuery(c *gin.Context) settlement.Query {
	return settlement.Query{
		Month:          c.Query("month"),
		BusinessNumber: c.Query("businessNumber"),
		Search:         c.Query("search"),
	}
}

// Months lists the settlement months the user can see.
func (h *Handler) Months(c *gin.Context) {
	months, err := h.settlements.Months(c.Request.Context(), viewer(c))
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"months": models.ToMonths(months)})
}

func (h *Handler) Settlements(c *gin.Context) {
	table, err := h.settlements.List(c.Request.Context(), viewer(c), settlementQuery(c))
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"table": models.ToSettlementTable(table)})
}

func (h *Handler) Pivot(c *gin.Context) {
	table, err := h.settlements.Pivot(c.Request.Context(), viewer(c), settlementQuery(c))
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"pivot": models.ToPivotReport(table)})
}

// Export downloads the settlement rows as xlsx. Subtotal rows are included unless
// subtotals=false is given.
func (h *Handler) Export(c *gin.Context) {
	withSubtotals := true
	if raw := c.Query("subtotals"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "subtotals 값이 올바르지 않습니다.")
			return
		}
		withSubtotals = v
	}

	var buf bytes.Buffer
	filename, err := h.settlements.Export(c.Request.Context(), viewer(c), settlementQuery(c), withSubtotals, &buf)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, excel.ContentType, buf.Bytes())
}

// Columns returns the columns the user can see in display order.
func (h *Handler) Columns(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		columns []database.ColumnSetting
		err     error
	)
	if viewer(c).Admin {
		columns, err = h.settings.Columns(ctx)
	} else {
		columns, err = h.settings.VisibleColumns(ctx)
	}
	if err != nil {
		handleError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"columns": models.ToColumns(columns)})
}

// publicCompanyKeys are the company settings every account may read.
var publicCompanyKeys = []string{
	database.CompanySettingName,
	database.CompanySettingContactEmail,
	database.CompanySettingContactPhone,
	database.CompanySettingFooterText,
}

// Company returns the contact details of the operating company.
func (h *Handler) Company(c *gin.Context) {
	values, err := h.settings.Company(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	company := make(map[string]string, len(publicCompanyKeys))
	for _, k := range publicCompanyKeys {
		company[k] = values[k]
	}
	success(c, http.StatusOK, gin.H{"company": company})
}
