package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lockboxhq/lockbox/internal/server/models"
)

type orgHandler struct {
	org OrgService
}

func newOrgHandler(deps Deps) *orgHandler {
	return &orgHandler{org: deps.Org}
}

func (h *orgHandler) createCollection(c *gin.Context) {
	var req collectionRequest
	if !bindStrict(c, &req) {
		return
	}

	col, err := h.org.CreateCollection(c.Request.Context(), accountID(c), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"collection": toCollectionResponse(col)})
}

func (h *orgHandler) listCollections(c *gin.Context) {
	list, err := h.org.ListCollections(c.Request.Context(), accountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]collectionResponse, len(list))
	for i, col := range list {
		out[i] = toCollectionResponse(col)
	}
	c.JSON(http.StatusOK, gin.H{"collections": out})
}

func (h *orgHandler) updateCollection(c *gin.Context) {
	var req collectionRequest
	if !bindStrict(c, &req) {
		return
	}

	col, err := h.org.UpdateCollection(c.Request.Context(), accountID(c), c.Param("id"), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collection": toCollectionResponse(col)})
}

func (h *orgHandler) deleteCollection(c *gin.Context) {
	if err := h.org.DeleteCollection(c.Request.Context(), accountID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// moveEntries re-parents entries into the collection named by the path. The
// sentinel id "none" moves them to uncategorised.
func (h *orgHandler) moveEntries(c *gin.Context) {
	var req moveRequest
	if !bindStrict(c, &req) {
		return
	}

	var collectionID *string
	if id := c.Param("id"); id != "none" {
		collectionID = &id
	}

	n, err := h.org.MoveEntries(c.Request.Context(), accountID(c), req.EntryIDs, collectionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": n})
}

func (h *orgHandler) createTag(c *gin.Context) {
	var req tagRequest
	if !bindStrict(c, &req) {
		return
	}

	tag, err := h.org.UpsertTag(c.Request.Context(), accountID(c), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tag": toTagResponse(tag)})
}

func (h *orgHandler) listTags(c *gin.Context) {
	list, err := h.org.ListTags(c.Request.Context(), accountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]tagResponse, len(list))
	for i, tag := range list {
		out[i] = toTagResponse(tag)
	}
	c.JSON(http.StatusOK, gin.H{"tags": out})
}

func (h *orgHandler) deleteTag(c *gin.Context) {
	if err := h.org.DeleteTag(c.Request.Context(), accountID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *orgHandler) setEntryTags(c *gin.Context) {
	var req setTagsRequest
	if !bindStrict(c, &req) {
		return
	}

	if err := h.org.SetEntryTags(c.Request.Context(), accountID(c), c.Param("id"), req.TagIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tagIds": req.TagIDs})
}

func toTagResponse(tag *models.Tag) tagResponse {
	return tagResponse{ID: tag.ID, Name: tag.Name, CreatedAt: tag.CreatedAt}
}
