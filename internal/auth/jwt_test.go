package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// newTestTokenService creates a TokenService for testing.
// It uses a fixed, known secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short")
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_ValidSecret(t *testing.T) {
	_, err := NewTokenService("this-is-16-chars")
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
}

// =========================================================================
// GENERATE TESTS
// =========================================================================

func TestGenerate_ReturnsNonEmptyToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if token == "" {
		t.Error("Generate() returned empty token")
	}

	// JWT tokens have 3 dot-separated parts: header.payload.signature
	// Count dots to sanity-check the format
	dots := 0
	for _, c := range token {
		if c == '.' {
			dots++
		}
	}
	if dots != 2 {
		t.Errorf("Generate() token doesn't look like a JWT (expected 2 dots, got %d)", dots)
	}
}

func TestGenerate_DifferentUsersGetDifferentTokens(t *testing.T) {
	ts := newTestTokenService(t)

	token1, _ := ts.Generate("user-aaa")
	token2, _ := ts.Generate("user-bbb")

	if token1 == token2 {
		t.Error("Generate() returned identical tokens for different user IDs")
	}
}

// =========================================================================
// VALIDATE TESTS
// =========================================================================

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	userID := "user-abc-123"

	token, err := ts.Generate(userID)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// Validate should return the exact same userID we put in
	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != userID {
		t.Errorf("Validate() userID = %q, want %q", got, userID)
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	// Generate a token that expired 1 second ago
	token, err := ts.generateWithDuration("user-123", -1*time.Second)
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}

	_, err = ts.Validate(token)
	if err == nil {
		t.Fatal("Validate() should return an error for an expired token")
	}
	t.Logf("Expired token error (expected): %v", err)
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate("user-123")

	// Flip a character in the signature (last segment after the 2nd dot)
	// to simulate an attacker modifying the payload
	tampered := token[:len(token)-3] + "xxx"

	_, err := ts.Validate(tampered)
	if err == nil {
		t.Fatal("Validate() should return an error for a tampered token")
	}
	t.Logf("Tampered token error (expected): %v", err)
}

func TestValidate_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!")
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!")

	// Token signed with ts1's secret
	token, _ := ts1.Generate("user-123")

	// Validating with ts2's (different) secret must fail
	_, err := ts2.Validate(token)
	if err == nil {
		t.Fatal("Validate() should fail when using a different secret")
	}
}

func TestValidate_EmptyToken(t *testing.T) {
	ts := newTestTokenService(t)

	_, err := ts.Validate("")
	if err == nil {
		t.Fatal("Validate() should return an error for an empty string")
	}
}

func TestValidate_GarbageString(t *testing.T) {
	ts := newTestTokenService(t)

	_, err := ts.Validate("not.a.jwt.token")
	if err == nil {
		t.Fatal("Validate() should return an error for a garbage string")
	}
}

// =========================================================================
// DURATION TESTS
// =========================================================================

func TestGenerate_FutureExpiry(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.generateWithDuration("user-123", 1*time.Hour)
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}

	// A 1-hour token should be valid now
	userID, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() on 1h token error = %v", err)
	}
	if userID != "user-123" {
		t.Errorf("userID = %q, want %q", userID, "user-123")
	}
}

// =========================================================================
// SIMULATED CLOCK TESTS
// =========================================================================

// fakeClock is a settable time source. Whole seconds only: JWT NumericDate
// truncates to seconds, so sub-second offsets would blur the boundary.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClockedTokenService(t *testing.T) (*TokenService, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts, clock
}

func TestVerify_ValidJustBeforeExpiry(t *testing.T) {
	ts, clock := newClockedTokenService(t)

	token, err := ts.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	clock.Advance(14*time.Minute + 59*time.Second)
	if !ts.Verify(token) {
		t.Fatal("Verify() = false at 14m59s, want true")
	}
}

func TestVerify_InvalidAfterExpiry(t *testing.T) {
	ts, clock := newClockedTokenService(t)

	token, err := ts.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	clock.Advance(15*time.Minute + time.Second)
	if ts.Verify(token) {
		t.Fatal("Verify() = true at 15m01s, want false")
	}
}

func TestVerify_IssuedInTheFuture(t *testing.T) {
	ts, clock := newClockedTokenService(t)

	clock.Advance(time.Hour)
	token, _ := ts.Generate("user-1")
	clock.Advance(-time.Hour)

	if ts.Verify(token) {
		t.Fatal("Verify() = true for a token issued in the future")
	}
}

func TestWithTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ts, err := NewTokenService("test-secret-at-least-16-chars!!",
		WithClock(clock.Now), WithTTL(time.Minute))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	if ts.TTL() != time.Minute {
		t.Fatalf("TTL() = %v, want 1m", ts.TTL())
	}

	token, _ := ts.Generate("user-1")
	clock.Advance(2 * time.Minute)
	if ts.Verify(token) {
		t.Fatal("Verify() = true after a 1m TTL elapsed")
	}
}

// =========================================================================
// Verify / SubjectOf TESTS
// =========================================================================

func TestGenerate_SameUserGetsDistinctTokens(t *testing.T) {
	ts, _ := newClockedTokenService(t)

	a, _ := ts.Generate("user-1")
	b, _ := ts.Generate("user-1")
	if a == b {
		t.Error("Generate() returned identical tokens for the same user in the same second")
	}
}

func TestGenerate_EmptySubject(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Generate(""); err == nil {
		t.Fatal("Generate() should reject an empty user id")
	}
}

func TestVerify_NeverPanicsOnJunk(t *testing.T) {
	ts := newTestTokenService(t)

	for _, junk := range []string{"", ".", "..", "a.b.c", "Bearer x", "eyJhbGciOiJub25lIn0.e30."} {
		if ts.Verify(junk) {
			t.Errorf("Verify(%q) = true", junk)
		}
	}
}

func TestSubjectOf(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Generate("user-42")
	got, err := ts.SubjectOf(token)
	if err != nil {
		t.Fatalf("SubjectOf() error = %v", err)
	}
	if got != "user-42" {
		t.Errorf("SubjectOf() = %q, want %q", got, "user-42")
	}

	expired, _ := ts.generateWithDuration("user-42", -time.Minute)
	if _, err := ts.SubjectOf(expired); err == nil {
		t.Error("SubjectOf() should fail for an expired token")
	}
}

func TestValidate_RejectsOtherSigningMethod(t *testing.T) {
	ts := newTestTokenService(t)

	// HS512 with the same secret is still not accepted.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "courier",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := tok.SignedString([]byte("test-secret-at-least-16-chars!!"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if ts.Verify(signed) {
		t.Fatal("Verify() accepted an HS512 token")
	}
}

func TestValidate_RejectsWrongIssuer(t *testing.T) {
	ts := newTestTokenService(t)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "someone-else",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, _ := tok.SignedString([]byte("test-secret-at-least-16-chars!!"))
	if ts.Verify(signed) {
		t.Fatal("Verify() accepted a token from another issuer")
	}
}
