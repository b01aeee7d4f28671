// Package auth — password hashing utilities.
//
// Two algorithms are supported, both from golang.org/x/crypto:
//
//   - argon2id (default): memory-hard, so GPU and ASIC cracking is expensive.
//     Encoded as
//     $argon2id$v=19$m=<memory KiB>,t=<iterations>,p=<parallelism>$<salt b64>$<key b64>
//   - bcrypt: kept for hashes carried over from older deployments, and
//     selectable with PASSWORD_ALGORITHM=bcrypt. Encoded as $2a$<cost>$<salt+hash>.
//
// Both encodings embed their salt and parameters, so Verify needs nothing
// but the stored string. Verify picks the algorithm from the hash prefix, so
// switching the configured algorithm never locks out existing users.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names a password hashing scheme.
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

var (
	// ErrPasswordMismatch is returned by Verify when the password is wrong.
	ErrPasswordMismatch = errors.New("auth: invalid password")
	// ErrInvalidHash is returned by Verify when the stored hash cannot be parsed.
	ErrInvalidHash = errors.New("auth: invalid password hash")
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms.
const defaultCost = 12

// bcryptMaxBytes is the bcrypt input limit; longer passwords are silently
// truncated by the algorithm, so Hash rejects them instead.
const bcryptMaxBytes = 72

// Argon2idParams are the tunables of an argon2id hash.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams follows the OWASP baseline (64 MiB, t=3, p=2).
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// PasswordService hashes and verifies passwords.
//
// It's a struct (not free functions) so that the cost can be injected
// in tests: cheap parameters make tests run in milliseconds.
type PasswordService struct {
	algorithm  Algorithm
	argon      Argon2idParams
	bcryptCost int
}

// NewPasswordService creates a PasswordService hashing with the given
// algorithm at production strength. An empty algorithm means argon2id.
func NewPasswordService(alg Algorithm) (*PasswordService, error) {
	switch alg {
	case "":
		alg = AlgorithmArgon2id
	case AlgorithmArgon2id, AlgorithmBcrypt:
	default:
		return nil, fmt.Errorf("auth: unknown password algorithm %q", alg)
	}
	return &PasswordService{
		algorithm:  alg,
		argon:      DefaultArgon2idParams(),
		bcryptCost: defaultCost,
	}, nil
}

// NewPasswordServiceForTest creates a PasswordService with the weakest
// parameters both algorithms accept. Use it in tests in other packages.
//
// Do NOT use in production.
func NewPasswordServiceForTest(alg Algorithm) *PasswordService {
	if alg == "" {
		alg = AlgorithmArgon2id
	}
	return &PasswordService{
		algorithm: alg,
		argon: Argon2idParams{
			MemoryKiB:   64,
			Iterations:  1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
		bcryptCost: bcrypt.MinCost,
	}
}

// Algorithm reports which scheme Hash produces.
func (p *PasswordService) Algorithm() Algorithm {
	return p.algorithm
}

// Hash returns a freshly salted hash of plaintext. Hashing the same password
// twice yields two different strings.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if p.algorithm == AlgorithmBcrypt {
		return p.hashBcrypt(plaintext)
	}
	return p.hashArgon2id(plaintext)
}

// Verify checks plaintext against a stored hash produced by either algorithm.
//
// Returns nil on a match, ErrPasswordMismatch on a wrong password and
// ErrInvalidHash when the stored value is not a recognised hash. Both
// comparisons run in constant time with respect to the hash contents.
//
// Usage:
//
//	if err := ps.Verify(user.PasswordHash, inputPassword); err != nil {
//	    // wrong password (or corrupt hash)
//	}
func (p *PasswordService) Verify(hash, plaintext string) error {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return p.verifyArgon2id(hash, plaintext)
	case strings.HasPrefix(hash, "$2"):
		return verifyBcrypt(hash, plaintext)
	default:
		return ErrInvalidHash
	}
}

func (p *PasswordService) hashBcrypt(plaintext string) (string, error) {
	if len(plaintext) > bcryptMaxBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", bcryptMaxBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

func verifyBcrypt(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return nil
}

func (p *PasswordService) hashArgon2id(plaintext string) (string, error) {
	salt := make([]byte, p.argon.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt,
		p.argon.Iterations, p.argon.MemoryKiB, p.argon.Parallelism, p.argon.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.argon.MemoryKiB, p.argon.Iterations, p.argon.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

func (p *PasswordService) verifyArgon2id(encoded, plaintext string) error {
	params, salt, expected, err := decodeArgon2id(encoded)
	if err != nil {
		return err
	}

	// A stored hash controls how much memory verification allocates. Refuse
	// anything far beyond what this service would produce itself.
	if params.MemoryKiB > max(p.argon.MemoryKiB, DefaultArgon2idParams().MemoryKiB)*2 ||
		params.Iterations > max(p.argon.Iterations, DefaultArgon2idParams().Iterations)*2 {
		return ErrInvalidHash
	}

	key := argon2.IDKey([]byte(plaintext), salt,
		params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected)))

	if subtle.ConstantTimeCompare(key, expected) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// decodeArgon2id parses $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>.
func decodeArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	var mem, iter uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || par == 0 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}

	return Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  iter,
		Parallelism: par,
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, nil
}
