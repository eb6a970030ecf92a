package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lockboxhq/lockbox/internal/server/models"
)

type vaultHandler struct {
	vault    VaultService
	snapshot SnapshotService
}

func newVaultHandler(deps Deps) *vaultHandler {
	return &vaultHandler{vault: deps.Vault, snapshot: deps.Snapshot}
}

// listFilter builds an EntryFilter from query parameters. Bad numeric or
// boolean values are ignored rather than rejected.
func listFilter(c *gin.Context) models.EntryFilter {
	var filter models.EntryFilter
	filter.Query = c.Query("query")

	if v := c.Query("collectionId"); v != "" {
		filter.CollectionID = &v
	}
	if v := c.Query("tagIds"); v != "" {
		filter.TagIDs = strings.Split(v, ",")
	}
	if v := c.Query("isFavorite"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.IsFavorite = &b
		}
	}
	if v := c.Query("isPinned"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.IsPinned = &b
		}
	}
	if v := c.Query("strengthMin"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.StrengthMin = &n
		}
	}
	if v := c.Query("strengthMax"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.StrengthMax = &n
		}
	}
	return filter
}

func (h *vaultHandler) list(c *gin.Context) {
	entries, err := h.vault.List(c.Request.Context(), accountID(c), listFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": toEntryResponses(entries)})
}

func (h *vaultHandler) get(c *gin.Context) {
	decrypted, err := h.vault.Get(c.Request.Context(), accountID(c), c.Param("id"), clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": toEntryResponse(decrypted.Entry, &decrypted.Secret)})
}

func (h *vaultHandler) create(c *gin.Context) {
	var req entryRequest
	if !bindStrict(c, &req) {
		return
	}

	entry, err := h.vault.Create(c.Request.Context(), accountID(c), req.toInput(), clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": toEntryResponse(entry, nil)})
}

// directSave is the browser-extension capture endpoint: the create operation
// with an acknowledgement message instead of the full entry echo.
func (h *vaultHandler) directSave(c *gin.Context) {
	var req entryRequest
	if !bindStrict(c, &req) {
		return
	}

	entry, err := h.vault.Create(c.Request.Context(), accountID(c), req.toInput(), clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "credential saved", "id": entry.ID})
}

func (h *vaultHandler) update(c *gin.Context) {
	var req entryPatchRequest
	if !bindStrict(c, &req) {
		return
	}

	entry, err := h.vault.Update(c.Request.Context(), accountID(c), c.Param("id"), req.toPatch(), clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": toEntryResponse(entry, nil)})
}

func (h *vaultHandler) delete(c *gin.Context) {
	if err := h.vault.Delete(c.Request.Context(), accountID(c), c.Param("id"), clientMeta(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *vaultHandler) bulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if !bindStrict(c, &req) {
		return
	}

	n, err := h.vault.BulkDelete(c.Request.Context(), accountID(c), req.EntryIDs, clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *vaultHandler) toggleFavorite(c *gin.Context) {
	v, err := h.vault.ToggleFavorite(c.Request.Context(), accountID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isFavorite": v})
}

func (h *vaultHandler) togglePinned(c *gin.Context) {
	v, err := h.vault.TogglePinned(c.Request.Context(), accountID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"isPinned": v})
}

func (h *vaultHandler) health(c *gin.Context) {
	report, err := h.vault.Health(c.Request.Context(), accountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *vaultHandler) export(c *gin.Context) {
	entries, err := h.vault.Export(c.Request.Context(), accountID(c), clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *vaultHandler) importEntries(c *gin.Context) {
	var req importRequest
	if !bindStrict(c, &req) {
		return
	}

	n, err := h.vault.Import(c.Request.Context(), accountID(c), req.Entries, clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": n})
}

// exportSnapshot uploads an encrypted export to object storage and returns a
// short-lived download URL. 503 when storage is not configured.
func (h *vaultHandler) exportSnapshot(c *gin.Context) {
	if !h.snapshot.Enabled() {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorBody{Error: "snapshot storage not configured"})
		return
	}

	snapshot, err := h.snapshot.Create(c.Request.Context(), accountID(c), clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
