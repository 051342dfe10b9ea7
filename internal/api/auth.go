package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AI2HU/gsnweb/internal/models"
)

// Cookie names
const (
	StateCookie   = "gsn_oauth_state"
	SessionCookie = "gsn_session"

	stateMaxAge   = 10 * 60
	sessionMaxAge = 30 * 24 * 60 * 60
)

// login handles GET /api/v1/auth/login
func (s *Server) login(c *gin.Context) {
	state := uuid.NewString()

	target, err := s.gsn.AuthorizeURL(state, s.callbackURL(c))
	if err != nil {
		s.errorResponse(c, http.StatusInternalServerError, "Failed to build login URL: "+err.Error())
		return
	}

	s.setCookie(c, StateCookie, state, stateMaxAge)
	c.Redirect(http.StatusFound, target)
}

// callback handles GET /api/v1/auth/callback
func (s *Server) callback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		s.errorResponse(c, http.StatusUnauthorized, "Login rejected by GSN: "+reason)
		return
	}

	code := c.Query("code")
	if code == "" {
		s.errorResponse(c, http.StatusBadRequest, "Missing authorization code")
		return
	}

	expected, err := c.Cookie(StateCookie)
	if err != nil || expected == "" || expected != c.Query("state") {
		s.errorResponse(c, http.StatusBadRequest, "Invalid login state")
		return
	}
	s.setCookie(c, StateCookie, "", -1)

	token, err := s.gsn.ExchangeCode(c.Request.Context(), code, s.callbackURL(c))
	if err != nil {
		s.gsnError(c, err)
		return
	}

	session := &models.Session{
		ID:           uuid.NewString(),
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scope:        token.Scope,
		ExpiresAt:    token.ExpiresAt,
	}
	if err := s.db.SaveSession(c.Request.Context(), session); err != nil {
		s.errorResponse(c, http.StatusInternalServerError, "Failed to store session: "+err.Error())
		return
	}

	s.log.Info("New session %s", session.ID)
	s.setCookie(c, SessionCookie, session.ID, sessionMaxAge)
	c.Redirect(http.StatusFound, s.settings.GSN.WebUIURL)
}

// logout handles POST /api/v1/auth/logout
func (s *Server) logout(c *gin.Context) {
	id, err := c.Cookie(SessionCookie)
	if err == nil && id != "" {
		if err := s.db.DeleteSession(c.Request.Context(), id); err != nil && !errors.Is(err, models.ErrSessionNotFound) {
			s.errorResponse(c, http.StatusInternalServerError, "Failed to delete session: "+err.Error())
			return
		}
	}

	s.setCookie(c, SessionCookie, "", -1)
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Logged out",
	})
}

func (s *Server) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", s.isHTTPS(c), true)
}

// callbackURL is the address GSN redirects the browser back to
func (s *Server) callbackURL(c *gin.Context) string {
	if s.publicURL != "" {
		if u, err := url.JoinPath(s.publicURL, "api", "v1", "auth", "callback"); err == nil {
			return u
		}
	}

	scheme := "http"
	if s.isHTTPS(c) {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/api/v1/auth/callback"
}

func (s *Server) isHTTPS(c *gin.Context) bool {
	if s.publicURL != "" {
		return strings.HasPrefix(s.publicURL, "https://")
	}
	return c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https"
}
