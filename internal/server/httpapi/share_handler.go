package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/server/models"
	"github.com/lockboxhq/lockbox/internal/server/services"
)

type shareHandler struct {
	share ShareService
}

func newShareHandler(deps Deps) *shareHandler {
	return &shareHandler{share: deps.Share}
}

func (h *shareHandler) create(c *gin.Context) {
	var req shareRequest
	if !bindStrict(c, &req) {
		return
	}
	if req.EntryID == "" {
		respondError(c, common.NewValidationError("entryId", "is required"))
		return
	}

	created, err := h.share.Create(c.Request.Context(), accountID(c), req.EntryID, services.ShareInput{
		MaxViews:       req.MaxViews,
		ExpiresInHours: req.ExpiresInHours,
		IncludeSecret:  req.IncludeSecret,
		IncludeNotes:   req.IncludeNotes,
	}, clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	// The raw token is disclosed here and never again.
	c.JSON(http.StatusCreated, gin.H{
		"share": toShareResponse(created.Share),
		"token": created.Token,
	})
}

func (h *shareHandler) list(c *gin.Context) {
	list, err := h.share.List(c.Request.Context(), accountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]shareResponse, len(list))
	for i, s := range list {
		out[i] = toShareResponse(s)
	}
	c.JSON(http.StatusOK, gin.H{"shares": out})
}

func (h *shareHandler) revoke(c *gin.Context) {
	if err := h.share.Revoke(c.Request.Context(), accountID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "revoked"})
}

// access is the only public vault endpoint. Every failure mode returns the
// same 404 so capability existence is never disclosed.
func (h *shareHandler) access(c *gin.Context) {
	view, err := h.share.Access(c.Request.Context(), c.Param("token"), clientMeta(c))
	if err != nil {
		respondError(c, common.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, view)
}

type auditHandler struct {
	audit AuditService
}

func newAuditHandler(deps Deps) *auditHandler {
	return &auditHandler{audit: deps.Audit}
}

func (h *auditHandler) list(c *gin.Context) {
	filter := models.AuditFilter{Action: c.Query("action")}
	if v := c.Query("from"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &ts
		}
	}
	if v := c.Query("to"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &ts
		}
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(c.Query("offset")); err == nil {
		filter.Offset = n
	}

	records, err := h.audit.List(c.Request.Context(), accountID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]auditResponse, len(records))
	for i, r := range records {
		out[i] = toAuditResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"records": out})
}

func (h *auditHandler) summary(c *gin.Context) {
	days := 30
	if n, err := strconv.Atoi(c.Query("days")); err == nil && n > 0 {
		days = n
	}

	rows, err := h.audit.Summary(c.Request.Context(), accountID(c), days)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, len(rows))
	for i, row := range rows {
		out[i] = gin.H{"action": row.Action, "count": row.Count}
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "actions": out})
}
