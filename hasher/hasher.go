package hasher

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Algorithm identifiers accepted by New.
const (
	// AlgorithmPBKDF2SHA256 is PBKDF2 with HMAC-SHA256.
	AlgorithmPBKDF2SHA256 = "pbkdf2_sha256"
	// AlgorithmPBKDF2SHA512 is PBKDF2 with HMAC-SHA512.
	AlgorithmPBKDF2SHA512 = "pbkdf2_sha512"
	// AlgorithmArgon2ID is Argon2id; iterations maps to the time parameter.
	AlgorithmArgon2ID = "argon2id"
)

const (
	// saltBytes is the number of random bytes in a generated salt.
	saltBytes = 16
	// digestBytes is the derived key length.
	digestBytes = 32

	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// Hasher digests plaintext passwords under a fixed algorithm and work
// factor. Implementations are pure: the same (password, salt) pair always
// produces the same digest.
type Hasher interface {
	// Algorithm returns the algorithm identifier.
	Algorithm() string
	// Iterations returns the work factor.
	Iterations() int
	// Hash digests the password with the given hex salt.
	Hash(password, salt string) string
}

// New resolves a Hasher for the given algorithm identifier and work factor.
func New(algorithm string, iterations int) (Hasher, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("hasher: non-positive iterations %d for %s", iterations, algorithm)
	}
	switch algorithm {
	case AlgorithmPBKDF2SHA256, AlgorithmPBKDF2SHA512:
		return pbkdf2Hasher{algorithm: algorithm, iterations: iterations}, nil
	case AlgorithmArgon2ID:
		return argon2Hasher{iterations: iterations}, nil
	default:
		return nil, fmt.Errorf("hasher: unknown algorithm %q", algorithm)
	}
}

// GenerateSalt returns a fresh hex-encoded random salt.
func GenerateSalt() (string, error) {
	raw := make([]byte, saltBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("hasher: generate salt: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// encode renders a digest as "algorithm$iterations$base64(dk)".
func encode(algorithm string, iterations int, dk []byte) string {
	return fmt.Sprintf("%s$%d$%s", algorithm, iterations, base64.StdEncoding.EncodeToString(dk))
}

// saltKey turns a stored hex salt into key-derivation input. A salt that
// fails hex decoding is fed through verbatim so legacy rows stay hashable.
func saltKey(salt string) []byte {
	raw, err := hex.DecodeString(salt)
	if err != nil {
		return []byte(salt)
	}
	return raw
}

type pbkdf2Hasher struct {
	algorithm  string
	iterations int
}

func (h pbkdf2Hasher) Algorithm() string { return h.algorithm }
func (h pbkdf2Hasher) Iterations() int   { return h.iterations }

func (h pbkdf2Hasher) Hash(password, salt string) string {
	fn := sha256.New
	if h.algorithm == AlgorithmPBKDF2SHA512 {
		fn = sha512.New
	}
	dk := pbkdf2.Key([]byte(password), saltKey(salt), h.iterations, digestBytes, fn)
	return encode(h.algorithm, h.iterations, dk)
}

type argon2Hasher struct {
	iterations int
}

func (h argon2Hasher) Algorithm() string { return AlgorithmArgon2ID }
func (h argon2Hasher) Iterations() int   { return h.iterations }

func (h argon2Hasher) Hash(password, salt string) string {
	dk := argon2.IDKey([]byte(password), saltKey(salt), uint32(h.iterations), argon2Memory, argon2Threads, digestBytes)
	return encode(AlgorithmArgon2ID, h.iterations, dk)
}
