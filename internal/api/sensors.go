package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AI2HU/gsnweb/internal/gsn"
	"github.com/AI2HU/gsnweb/internal/models"
)

// errNoSession means the session cookie is set but its tokens are unusable
var errNoSession = errors.New("session expired, log in again")

// listSensors handles GET /api/v1/sensors
func (s *Server) listSensors(c *gin.Context) {
	raw, err := s.withToken(c, func(token string) (json.RawMessage, error) {
		return s.gsn.ListSensors(c.Request.Context(), token)
	})
	if err != nil {
		s.gsnError(c, err)
		return
	}

	s.successResponse(c, raw)
}

// sensorData handles GET /api/v1/sensors/:name/data
func (s *Server) sensorData(c *gin.Context) {
	query, err := parseDataQuery(c)
	if err != nil {
		s.errorResponse(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	name := c.Param("name")
	raw, err := s.withToken(c, func(token string) (json.RawMessage, error) {
		return s.gsn.SensorData(c.Request.Context(), token, name, query)
	})
	if err != nil {
		s.gsnError(c, err)
		return
	}

	s.successResponse(c, raw)
}

// withToken runs call with the session's access token, or with the service token when the
// request carries no session. A rejected service token is renewed once.
func (s *Server) withToken(c *gin.Context, call func(token string) (json.RawMessage, error)) (json.RawMessage, error) {
	sessionID, err := c.Cookie(SessionCookie)
	if err == nil && sessionID != "" {
		token, err := s.sessionToken(c, sessionID)
		if err != nil {
			return nil, err
		}
		return call(token)
	}

	token, err := s.gsn.ServiceToken(c.Request.Context())
	if err != nil {
		return nil, err
	}
	raw, err := call(token)
	if errors.Is(err, gsn.ErrUnauthorized) {
		s.gsn.InvalidateServiceToken()
		if token, err = s.gsn.ServiceToken(c.Request.Context()); err != nil {
			return nil, err
		}
		return call(token)
	}
	return raw, err
}

// sessionToken returns a usable access token for the session, refreshing it when expired
func (s *Server) sessionToken(c *gin.Context, id string) (string, error) {
	ctx := c.Request.Context()

	session, err := s.db.GetSession(ctx, id)
	if errors.Is(err, models.ErrSessionNotFound) {
		s.setCookie(c, SessionCookie, "", -1)
		return "", errNoSession
	}
	if err != nil {
		return "", err
	}

	if !session.Expired(s.now()) {
		return session.AccessToken, nil
	}
	if session.RefreshToken == "" {
		return "", errNoSession
	}

	token, err := s.gsn.RefreshToken(ctx, session.RefreshToken)
	if err != nil {
		if errors.Is(err, gsn.ErrUnauthorized) {
			return "", errNoSession
		}
		return "", err
	}

	session.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		session.RefreshToken = token.RefreshToken
	}
	session.ExpiresAt = token.ExpiresAt
	if err := s.db.SaveSession(ctx, session); err != nil {
		return "", fmt.Errorf("failed to store refreshed session: %w", err)
	}

	s.log.Debug("Refreshed session %s", session.ID)
	return session.AccessToken, nil
}

// gsnError maps GSN client errors to API responses
func (s *Server) gsnError(c *gin.Context, err error) {
	var apiErr *gsn.APIError
	switch {
	case errors.Is(err, errNoSession):
		s.errorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, gsn.ErrUnauthorized):
		s.errorResponse(c, http.StatusUnauthorized, "GSN rejected the credentials")
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		s.errorResponse(c, http.StatusNotFound, "Not found on GSN")
	case errors.As(err, &apiErr):
		s.errorResponse(c, http.StatusBadGateway, fmt.Sprintf("GSN returned HTTP %d", apiErr.StatusCode))
	default:
		s.log.Error("GSN request failed: %v", err)
		s.errorResponse(c, http.StatusBadGateway, "GSN request failed: "+err.Error())
	}
}

func parseDataQuery(c *gin.Context) (gsn.DataQuery, error) {
	var q gsn.DataQuery
	var err error

	if q.From, err = parseTime(c.Query("from")); err != nil {
		return q, fmt.Errorf("from: %w", err)
	}
	if q.To, err = parseTime(c.Query("to")); err != nil {
		return q, fmt.Errorf("to: %w", err)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, fmt.Errorf("to is before from")
	}

	if raw := c.Query("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 {
			return q, fmt.Errorf("size must be a non-negative integer, got %q", raw)
		}
		q.Size = size
	}

	return q, nil
}

// parseTime accepts RFC 3339, GSN's zone-less layout, or unix milliseconds
func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unsupported time %q", raw)
}
