package httpapi

import (
	"encoding/json"
	"time"

	"github.com/lockboxhq/lockbox/internal/server/models"
	"github.com/lockboxhq/lockbox/internal/server/services"
)

// --- requests ---

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type entryRequest struct {
	Title        string   `json:"title"`
	Username     string   `json:"username"`
	Password     string   `json:"password"`
	Site         *string  `json:"site"`
	Notes        *string  `json:"notes"`
	CollectionID *string  `json:"collectionId"`
	Tags         []string `json:"tags"`
	IsFavorite   bool     `json:"isFavorite"`
	IsPinned     bool     `json:"isPinned"`
}

func (r entryRequest) toInput() services.EntryInput {
	return services.EntryInput{
		Title:        r.Title,
		Username:     r.Username,
		Secret:       r.Password,
		Site:         r.Site,
		Notes:        r.Notes,
		CollectionID: r.CollectionID,
		Tags:         r.Tags,
		IsFavorite:   r.IsFavorite,
		IsPinned:     r.IsPinned,
	}
}

// entryPatchRequest is a partial update: absent fields stay untouched. An
// empty collectionId string moves the entry to uncategorised.
type entryPatchRequest struct {
	Title        *string   `json:"title"`
	Username     *string   `json:"username"`
	Password     *string   `json:"password"`
	Site         *string   `json:"site"`
	Notes        *string   `json:"notes"`
	CollectionID *string   `json:"collectionId"`
	IsFavorite   *bool     `json:"isFavorite"`
	IsPinned     *bool     `json:"isPinned"`
	Tags         *[]string `json:"tags"`
}

func (r entryPatchRequest) toPatch() services.EntryPatch {
	return services.EntryPatch{
		Title:        r.Title,
		Username:     r.Username,
		Secret:       r.Password,
		Site:         r.Site,
		Notes:        r.Notes,
		CollectionID: r.CollectionID,
		IsFavorite:   r.IsFavorite,
		IsPinned:     r.IsPinned,
		Tags:         r.Tags,
	}
}

type bulkDeleteRequest struct {
	EntryIDs []string `json:"entryIds"`
}

type moveRequest struct {
	EntryIDs []string `json:"entryIds"`
}

type collectionRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Color       *string `json:"color"`
}

func (r collectionRequest) toInput() services.CollectionInput {
	return services.CollectionInput{
		Name:        r.Name,
		Description: r.Description,
		Icon:        r.Icon,
		Color:       r.Color,
	}
}

type tagRequest struct {
	Name string `json:"name"`
}

type setTagsRequest struct {
	TagIDs []string `json:"tagIds"`
}

type shareRequest struct {
	EntryID        string `json:"entryId"`
	MaxViews       int    `json:"maxViews"`
	ExpiresInHours int    `json:"expiresInHours"`
	IncludeSecret  *bool  `json:"includeSecret"`
	IncludeNotes   *bool  `json:"includeNotes"`
}

type importRequest struct {
	Entries []services.ExportedEntry `json:"entries"`
}

// --- responses ---

type userResponse struct {
	ID        string    `json:"id"`
	Email     *string   `json:"email,omitempty"`
	Name      *string   `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(a *models.Account) userResponse {
	return userResponse{ID: a.ID, Email: a.Email, Name: a.DisplayName, CreatedAt: a.CreatedAt}
}

type entryResponse struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Username     string     `json:"username,omitempty"`
	Password     *string    `json:"password,omitempty"`
	Site         *string    `json:"site,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	CollectionID *string    `json:"collectionId,omitempty"`
	TagIDs       []string   `json:"tagIds,omitempty"`
	IsFavorite   bool       `json:"isFavorite"`
	IsPinned     bool       `json:"isPinned"`
	Strength     int        `json:"strength"`
	LastUsedAt   *time.Time `json:"lastUsedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func toEntryResponse(e *models.VaultEntry, secret *string) entryResponse {
	return entryResponse{
		ID:           e.ID,
		Title:        e.Title,
		Username:     e.Username,
		Password:     secret,
		Site:         e.Site,
		Notes:        e.Notes,
		CollectionID: e.CollectionID,
		TagIDs:       e.TagIDs,
		IsFavorite:   e.IsFavorite,
		IsPinned:     e.IsPinned,
		Strength:     e.Strength,
		LastUsedAt:   e.LastUsedAt,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func toEntryResponses(list []*models.VaultEntry) []entryResponse {
	out := make([]entryResponse, len(list))
	for i, e := range list {
		out[i] = toEntryResponse(e, nil)
	}
	return out
}

type collectionResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Icon        *string   `json:"icon,omitempty"`
	Color       *string   `json:"color,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toCollectionResponse(col *models.Collection) collectionResponse {
	return collectionResponse{
		ID:          col.ID,
		Name:        col.Name,
		Description: col.Description,
		Icon:        col.Icon,
		Color:       col.Color,
		CreatedAt:   col.CreatedAt,
		UpdatedAt:   col.UpdatedAt,
	}
}

type tagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// shareResponse exposes capability metadata; the raw token appears only in
// the creation response, never here.
type shareResponse struct {
	ID            string     `json:"id"`
	EntryID       string     `json:"entryId"`
	MaxViews      int        `json:"maxViews"`
	ViewCount     int        `json:"viewCount"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	AccessedAt    *time.Time `json:"accessedAt,omitempty"`
	IncludeSecret bool       `json:"includeSecret"`
	IncludeNotes  bool       `json:"includeNotes"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func toShareResponse(s *models.ShareCapability) shareResponse {
	return shareResponse{
		ID:            s.ID,
		EntryID:       s.EntryID,
		MaxViews:      s.MaxViews,
		ViewCount:     s.ViewCount,
		ExpiresAt:     s.ExpiresAt,
		AccessedAt:    s.AccessedAt,
		IncludeSecret: s.IncludeSecret,
		IncludeNotes:  s.IncludeNotes,
		CreatedAt:     s.CreatedAt,
	}
}

type auditResponse struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	EntryID    *string         `json:"entryId,omitempty"`
	EntryTitle *string         `json:"entryTitle,omitempty"`
	Address    *string         `json:"address,omitempty"`
	UserAgent  *string         `json:"userAgent,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func toAuditResponse(r *models.AuditRecord) auditResponse {
	return auditResponse{
		ID:         r.ID,
		Action:     r.Action,
		EntryID:    r.EntryID,
		EntryTitle: r.EntryTitle,
		Address:    r.NetworkAddress,
		UserAgent:  r.UserAgent,
		Details:    r.Details,
		CreatedAt:  r.CreatedAt,
	}
}
