package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	rateWindow     = 15 * time.Minute
	authRateEvents = 20
	apiRateEvents  = 100
)

// NewRouter assembles the full HTTP surface. Global middleware first, then
// the public endpoints, then the bearer-protected groups.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.Config))
	router.Use(withDeadline(requestDeadline))

	authLimiter := newIPLimiter(authRateEvents, rateWindow)
	apiLimiter := newIPLimiter(apiRateEvents, rateWindow)

	authed := requireAuth(deps.Auth)

	authH := newAuthHandler(deps)
	vaultH := newVaultHandler(deps)
	orgH := newOrgHandler(deps)
	shareH := newShareHandler(deps)
	auditH := newAuditHandler(deps)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := router.Group("/api/auth", rateLimit(authLimiter), bodyLimit(defaultBodyLimit))
	{
		authGroup.POST("/register", authH.register)
		authGroup.POST("/login", authH.login)
		authGroup.POST("/refresh", authH.refresh)
		authGroup.POST("/logout", authH.logout)
		authGroup.POST("/logout-all", authed, authH.logoutAll)
		authGroup.GET("/me", authed, authH.me)

		// One static pair per configured provider.
		for _, name := range deps.Providers.Names() {
			provider, _ := deps.Providers.Get(name)
			authGroup.GET("/"+name, authH.oauthStart(provider))
			authGroup.GET("/"+name+"/callback", authH.oauthCallback(provider))
		}
	}

	api := router.Group("/api", rateLimit(apiLimiter))

	// Anonymous capability redemption.
	api.GET("/share/:token", shareH.access)

	passwords := api.Group("/passwords", authed, bodyLimit(defaultBodyLimit))
	{
		passwords.GET("", vaultH.list)
		passwords.POST("", vaultH.create)
		passwords.POST("/direct-save", vaultH.directSave)
		passwords.GET("/health", vaultH.health)
		passwords.GET("/export", vaultH.export)
		passwords.POST("/export/snapshot", vaultH.exportSnapshot)
		passwords.POST("/import", bodyLimit(importBodyLimit), vaultH.importEntries)
		passwords.POST("/bulk-delete", vaultH.bulkDelete)
		passwords.GET("/:id", vaultH.get)
		passwords.PUT("/:id", vaultH.update)
		passwords.DELETE("/:id", vaultH.delete)
		passwords.POST("/:id/favorite", vaultH.toggleFavorite)
		passwords.POST("/:id/pin", vaultH.togglePinned)
		passwords.POST("/:id/tags", orgH.setEntryTags)
	}

	collections := api.Group("/collections", authed, bodyLimit(defaultBodyLimit))
	{
		collections.GET("", orgH.listCollections)
		collections.POST("", orgH.createCollection)
		collections.PUT("/:id", orgH.updateCollection)
		collections.DELETE("/:id", orgH.deleteCollection)
		collections.POST("/:id/move", orgH.moveEntries)
	}

	tags := api.Group("/tags", authed, bodyLimit(defaultBodyLimit))
	{
		tags.GET("", orgH.listTags)
		tags.POST("", orgH.createTag)
		tags.DELETE("/:id", orgH.deleteTag)
	}

	shares := api.Group("/shares", authed, bodyLimit(defaultBodyLimit))
	{
		shares.GET("", shareH.list)
		shares.POST("", shareH.create)
		shares.DELETE("/:id", shareH.revoke)
	}

	audit := api.Group("/audit", authed)
	{
		audit.GET("", auditH.list)
		audit.GET("/summary", auditH.summary)
	}

	return router
}
