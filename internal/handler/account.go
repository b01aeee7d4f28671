package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/courier/internal/apperror"
	"github.com/sakif/courier/internal/auth"
	"github.com/sakif/courier/internal/model"
	"github.com/sakif/courier/internal/service"
)

// Accounts is the part of service.AccountService the handlers call.
// Tests substitute a fake.
type Accounts interface {
	CreateAccount(ctx context.Context, in service.CreateAccountInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	GetUserInfo(ctx context.Context, id string) (*model.UserInfo, error)
}

// CookieOptions controls the session cookie written on login.
type CookieOptions struct {
	MaxAge time.Duration // matches the token TTL
	Secure bool          // set in production (HTTPS only)
}

// AccountHandler serves the /api/account routes.
//
// HANDLER RESPONSIBILITIES:
//   - HandleCreate       → register a user and its profile
//   - HandleLogin        → issue the cookie token and the header token
//   - HandleFindUserInfo → return a profile (behind auth.RequireSession)
//   - HandleVerifyJWT    → answer true/false for the double-token check
//   - HandleLogout       → clear the jwt cookie
type AccountHandler struct {
	accounts Accounts
	verifier *auth.SessionVerifier
	cookie   CookieOptions
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(
	accounts Accounts,
	verifier *auth.SessionVerifier,
	cookie CookieOptions,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		verifier: verifier,
		cookie:   cookie,
		logger:   logger,
	}
}

type createAccountRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleCreate registers a new account.
//
// HTTP: POST /api/account/create
// REQUEST BODY: {"email": "...", "password": "...", "displayName": "...", "bio": "..."}
// RESPONSE: 200 {"id": "...", "email": "...", "createdAt": "..."}
func (h *AccountHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid create account body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", apperror.MsgCreateUserFailed))
		return
	}

	user, err := h.accounts.CreateAccount(r.Context(), service.CreateAccountInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleLogin checks credentials and starts a session.
//
// HTTP: POST /api/account/login
// REQUEST BODY: {"email": "...", "password": "..."}
//
// DOUBLE TOKEN:
// Two tokens are issued for the same user. The cookie token goes into the
// HttpOnly "jwt" cookie, which scripts cannot read. The header token goes
// into the Authorization response header and the body, and the frontend
// sends it back as "Authorization: Bearer <token>". A protected request
// needs both, so a forged cross-site request (cookie only) is refused.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, apperror.InvalidCredentials())
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.CookieToken,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Authorization", "Bearer "+res.HeaderToken)

	writeJSON(w, http.StatusOK, res.Session)
}

// HandleFindUserInfo returns a profile.
//
// HTTP: POST /api/account/findUserInfoById?id=<claimed>&searchId=<profile>
//
// Mounted behind auth.RequireSession(…, auth.QueryParam("id")), so by the
// time it runs the caller has proven to be id. searchId defaults to id.
func (h *AccountHandler) HandleFindUserInfo(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.NotAuthenticated())
		return
	}

	searchID := r.URL.Query().Get("searchId")
	if searchID == "" {
		searchID = callerID
	}

	info, err := h.accounts.GetUserInfo(r.Context(), searchID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// HandleVerifyJWT reports whether the request carries a valid token pair for
// the id query parameter.
//
// HTTP: POST /api/account/verifyJwt?id=<claimed>
// RESPONSE: 200 true, or 403 false
func (h *AccountHandler) HandleVerifyJWT(w http.ResponseWriter, r *http.Request) {
	err := h.verifier.Authorize(
		r.URL.Query().Get("id"),
		auth.CookieToken(r),
		auth.BearerToken(r.Header.Get("Authorization")),
	)
	if err != nil {
		writeJSON(w, http.StatusForbidden, false)
		return
	}
	writeJSON(w, http.StatusOK, true)
}

// HandleLogout expires the jwt cookie.
//
// HTTP: POST /api/account/logout
//
// Tokens are stateless, so the cookie token stays valid until it expires;
// logout only removes the browser's copy.
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusOK)
}
