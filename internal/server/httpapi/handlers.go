package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/shared"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodySize = 4 << 10

// rejectMessage is the only failure detail clients ever see for refresh
// and logout.
const rejectMessage = "invalid token"

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type meResponse struct {
	UserID          string `json:"user_id"`
	Email           string `json:"email,omitempty"`
	Nickname        string `json:"nickname,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

// reject logs the typed cause and answers with the uniform 400.
func (s *HTTPServer) reject(w http.ResponseWriter, r *http.Request, op string, err error) {
	args := []any{
		"request_id", middleware.GetReqID(r.Context()),
		"op", op,
		"kind", common.ErrorKind(err),
		"error", err,
	}
	if errors.Is(err, common.ErrStoreUnavailable) || errors.Is(err, common.ErrDuplicateToken) {
		s.logger.Error(r.Context(), "token operation failed", args...)
	} else {
		s.logger.Info(r.Context(), "token rejected", args...)
	}
	writeError(w, http.StatusBadRequest, rejectMessage)
}

func (s *HTTPServer) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

func (s *HTTPServer) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// refresh reads the token from X-Refresh-Token, falling back to a JSON body.
func (s *HTTPServer) refresh(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(common.RefreshTokenHeaderName)
	if token == "" {
		var req refreshRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err == nil {
			token = req.RefreshToken
		}
	}
	if token == "" {
		s.reject(w, r, "refresh", common.ErrInvalidToken)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	pair, err := s.tokens.Refresh(ctx, token)
	if err != nil {
		s.reject(w, r, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *HTTPServer) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.reject(w, r, "logout", common.ErrInvalidToken)
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	if err := s.tokens.Logout(ctx, token); err != nil {
		s.reject(w, r, "logout", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

const (
	stateCookieName = "kakao_oauth_state"
	stateCookiePath = "/api/oauth/kakao"
	stateSize       = 16
	stateMaxAge     = 10 * 60
)

// newState is a seam for tests.
var newState = func() (string, error) {
	return shared.MakeRandHexString(stateSize)
}

// kakaoLogin sends the browser to the Kakao consent page. The state value is
// echoed back to the callback and checked against a short-lived cookie.
func (s *HTTPServer) kakaoLogin(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		writeError(w, http.StatusNotFound, "kakao login is not configured")
		return
	}

	state, err := newState()
	if err != nil {
		s.logger.Error(r.Context(), "generate oauth state", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     stateCookiePath,
		MaxAge:   stateMaxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.accounts.LoginURL(state), http.StatusFound)
}

// kakaoCallback finishes the login. When the state cookie set by kakaoLogin
// is present the query state must match it; clients that obtained the code
// on their own arrive without the cookie.
func (s *HTTPServer) kakaoCallback(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		writeError(w, http.StatusNotFound, "kakao login is not configured")
		return
	}

	if c, err := r.Cookie(stateCookieName); err == nil {
		http.SetCookie(w, &http.Cookie{Name: stateCookieName, Path: stateCookiePath, MaxAge: -1})
		if r.URL.Query().Get("state") != c.Value {
			writeError(w, http.StatusBadRequest, "state mismatch")
			return
		}
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	pair, user, err := s.accounts.LoginOrSignup(ctx, code)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, common.ErrIdentityProvider) {
			status = http.StatusBadGateway
		}
		s.logger.Warn(r.Context(), "kakao login failed",
			"request_id", middleware.GetReqID(r.Context()), "kind", common.ErrorKind(err), "error", err)
		writeError(w, status, "login failed")
		return
	}

	s.logger.Info(r.Context(), "kakao login", "user_id", user.ID)
	writeJSON(w, http.StatusOK, pair)
}

func (s *HTTPServer) me(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if s.accounts == nil {
		writeJSON(w, http.StatusOK, meResponse{UserID: userID})
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()

	user, err := s.accounts.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		if errors.Is(err, common.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		s.logger.Error(r.Context(), "load user failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		UserID:          userID,
		Email:           user.Email,
		Nickname:        user.Nickname,
		ProfileImageURL: user.ProfileImageURL,
	})
}
