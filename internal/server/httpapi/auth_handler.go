package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/logging"
	"github.com/lockboxhq/lockbox/internal/server/config"
	"github.com/lockboxhq/lockbox/internal/server/oauth"
	"github.com/lockboxhq/lockbox/internal/server/services"
)

const (
	refreshCookieName = "refresh_token"
	// refreshCookiePath scopes the cookie to the auth endpoints so it never
	// travels with vault requests.
	refreshCookiePath = "/api/auth"

	oauthStateCookie    = "oauth_state"
	oauthVerifierCookie = "oauth_verifier"
	oauthCookieTTL      = 10 * time.Minute
)

type authHandler struct {
	auth      AuthService
	providers *oauth.Registry
	config    *config.Config
	logger    logging.Logger
}

func newAuthHandler(deps Deps) *authHandler {
	return &authHandler{
		auth:      deps.Auth,
		providers: deps.Providers,
		config:    deps.Config,
		logger:    deps.Logger.With("module", "httpapi"),
	}
}

func (h *authHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, token,
		int(h.config.RefreshTokenTTL.Seconds()), refreshCookiePath, "", h.config.IsProduction(), true)
}

func (h *authHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", h.config.IsProduction(), true)
}

func (h *authHandler) register(c *gin.Context) {
	var req registerRequest
	if !bindStrict(c, &req) {
		return
	}

	account, pair, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, req.Name, clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusCreated, gin.H{
		"user":        toUserResponse(account),
		"accessToken": pair.AccessToken,
	})
}

func (h *authHandler) login(c *gin.Context) {
	var req loginRequest
	if !bindStrict(c, &req) {
		return
	}

	account, pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{
		"user":        toUserResponse(account),
		"accessToken": pair.AccessToken,
	})
}

// refresh exchanges the cookie credential for a fresh bearer token. The
// refresh credential rotates, so the cookie is reset on every call.
func (h *authHandler) refresh(c *gin.Context) {
	raw, err := c.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		respondError(c, common.ErrUnauthenticated)
		return
	}

	account, pair, err := h.auth.Refresh(c.Request.Context(), raw)
	if err != nil {
		h.clearRefreshCookie(c)
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{
		"user":        toUserResponse(account),
		"accessToken": pair.AccessToken,
	})
}

func (h *authHandler) logout(c *gin.Context) {
	raw, _ := c.Cookie(refreshCookieName)

	if err := h.auth.Logout(c.Request.Context(), raw, clientMeta(c)); err != nil {
		respondError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *authHandler) logoutAll(c *gin.Context) {
	n, err := h.auth.LogoutAll(c.Request.Context(), accountID(c), clientMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}

func (h *authHandler) me(c *gin.Context) {
	account, err := h.auth.Me(c.Request.Context(), accountID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(account)})
}

// oauthStart begins the authorization code flow: state and PKCE verifier are
// parked in short-lived cookies, then the client is sent to the provider.
func (h *authHandler) oauthStart(provider oauth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := oauth.NewState()
		if err != nil {
			respondError(c, common.ErrInternal)
			return
		}
		verifier := oauth.NewVerifier()

		secure := h.config.IsProduction()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(oauthStateCookie, state, int(oauthCookieTTL.Seconds()), refreshCookiePath, "", secure, true)
		c.SetCookie(oauthVerifierCookie, verifier, int(oauthCookieTTL.Seconds()), refreshCookiePath, "", secure, true)

		c.Redirect(http.StatusFound, provider.AuthCodeURL(state, oauth.ChallengeS256(verifier)))
	}
}

// oauthCallback completes the flow. On success the refresh cookie is set and
// the client is redirected to the frontend; the bearer credential is never
// placed in the URL.
func (h *authHandler) oauthCallback(provider oauth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		failureURL := h.config.FrontendOrigin + "/auth/callback?error=oauth_failed"

		state, err := c.Cookie(oauthStateCookie)
		if err != nil || state == "" || c.Query("state") != state {
			c.Redirect(http.StatusFound, failureURL)
			return
		}
		verifier, err := c.Cookie(oauthVerifierCookie)
		if err != nil || verifier == "" {
			c.Redirect(http.StatusFound, failureURL)
			return
		}

		secure := h.config.IsProduction()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(oauthStateCookie, "", -1, refreshCookiePath, "", secure, true)
		c.SetCookie(oauthVerifierCookie, "", -1, refreshCookiePath, "", secure, true)

		identity, err := provider.Exchange(c.Request.Context(), c.Query("code"), verifier)
		if err != nil {
			h.logger.Warn(c.Request.Context(), "oauth exchange failed", "provider", provider.Name(), "error", err)
			c.Redirect(http.StatusFound, failureURL)
			return
		}

		profile := services.OAuthProfile{
			Provider:          identity.Provider,
			ProviderAccountID: identity.Subject,
		}
		if identity.Email != "" {
			profile.Email = &identity.Email
		}
		if identity.DisplayName != "" {
			profile.DisplayName = &identity.DisplayName
		}
		if identity.AccessToken != "" {
			profile.AccessToken = &identity.AccessToken
		}
		if identity.RefreshToken != "" {
			profile.RefreshToken = &identity.RefreshToken
		}

		_, pair, err := h.auth.FindOrLinkOAuth(c.Request.Context(), profile, clientMeta(c))
		if err != nil {
			h.logger.Error(c.Request.Context(), "oauth account linking failed", "provider", provider.Name(), "error", err)
			c.Redirect(http.StatusFound, failureURL)
			return
		}

		h.setRefreshCookie(c, pair.RefreshToken)
		c.Redirect(http.StatusFound, h.config.FrontendOrigin+"/auth/callback")
	}
}
