package auth

import (
	"log/slog"
	"strings"

	"github.com/sakif/courier/internal/apperror"
)

// CookieName is the cookie that carries the cookie-channel token.
const CookieName = "jwt"

// SessionVerifier grants access only when two independently issued tokens
// both attest to the same identity the caller claims.
//
// DOUBLE-SUBMIT CHECK:
// The cookie token is sent automatically by the browser; the header token
// must be attached by the frontend script. A cross-site attacker can make the
// browser send the cookie but cannot read or set the header, and a leaked
// header token is useless without the HttpOnly cookie. Both channels must
// verify and agree.
type SessionVerifier struct {
	tokens *TokenService
	logger *slog.Logger
}

// NewSessionVerifier creates a SessionVerifier backed by tokens.
func NewSessionVerifier(tokens *TokenService, logger *slog.Logger) *SessionVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionVerifier{tokens: tokens, logger: logger}
}

// Authorize returns nil when both tokens verify and both name claimedID.
//
// Every denial is the same apperror.NotAuthenticated(), so a caller cannot
// tell a missing token from an expired or mismatched one. The actual reason
// goes to the debug log only.
func (v *SessionVerifier) Authorize(claimedID, cookieToken, headerToken string) error {
	deny := func(reason string) error {
		v.logger.Debug("session denied",
			slog.String("reason", reason),
			slog.String("claimedID", claimedID),
		)
		return apperror.NotAuthenticated()
	}

	if claimedID == "" {
		return deny("missing claimed id")
	}
	if cookieToken == "" {
		return deny("missing cookie token")
	}
	if headerToken == "" {
		return deny("missing header token")
	}

	cookieSubject, err := v.tokens.SubjectOf(cookieToken)
	if err != nil {
		return deny("cookie token: " + err.Error())
	}
	headerSubject, err := v.tokens.SubjectOf(headerToken)
	if err != nil {
		return deny("header token: " + err.Error())
	}

	if cookieSubject != claimedID || headerSubject != claimedID {
		return deny("subject mismatch")
	}

	return nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is case-insensitive; anything else yields "".
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
