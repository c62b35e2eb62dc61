package handshake

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters used by HashSecret.
const (
	Argon2Memory      uint32 = 16384
	Argon2Time        uint32 = 2
	Argon2Parallelism uint8  = 2
	Argon2KeyLen      uint32 = 32
	Argon2SaltLen            = 16
)

// Bounds accepted when parsing a configured hash. Values outside them
// either panic inside argon2 or cost too much per handshake.
const (
	maxArgon2Memory uint32 = 1 << 20 // KiB
	maxArgon2Time   uint32 = 16
	maxArgon2KeyLen        = 128
)

// HashSecret returns an Argon2id hash of secret in the form
// $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>.
func HashSecret(secret string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Time, Argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func parseSecretHash(encoded string) (*argon2Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, errors.New("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %q", parts[2])
	}

	p := &argon2Params{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return nil, fmt.Errorf("parse parameters: %w", err)
	}
	if p.iterations < 1 || p.iterations > maxArgon2Time {
		return nil, fmt.Errorf("argon2 time t=%d out of range [1, %d]", p.iterations, maxArgon2Time)
	}
	if p.parallelism < 1 {
		return nil, errors.New("argon2 parallelism p must be at least 1")
	}
	if p.memory < 8*uint32(p.parallelism) || p.memory > maxArgon2Memory {
		return nil, fmt.Errorf("argon2 memory m=%d out of range [%d, %d]", p.memory, 8*uint32(p.parallelism), maxArgon2Memory)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("decode hash: %w", err)
	}
	if len(p.salt) == 0 {
		return nil, errors.New("empty salt")
	}
	if len(p.hash) == 0 || len(p.hash) > maxArgon2KeyLen {
		return nil, fmt.Errorf("hash length %d out of range [1, %d]", len(p.hash), maxArgon2KeyLen)
	}
	return p, nil
}

// ValidSecretHash returns an error unless encoded is a well-formed hash
// in the format HashSecret produces.
func ValidSecretHash(encoded string) error {
	_, err := parseSecretHash(encoded)
	return err
}

// VerifySecret checks secret against an Argon2id hash produced by HashSecret.
func VerifySecret(secret, encoded string) bool {
	p, err := parseSecretHash(encoded)
	if err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(secret), p.salt, p.iterations, p.memory, p.parallelism, uint32(len(p.hash)))
	return subtle.ConstantTimeCompare(computed, p.hash) == 1
}

// SecretVerifier accepts peers whose auth payload is a secret matching the
// Argon2id hash. The payload may be the secret string itself or an object
// carrying it under "secret".
func SecretVerifier(secretHash string) Verifier {
	return func(p PeerInfo) bool {
		secret, ok := secretFromPayload(p.Auth)
		if !ok {
			return false
		}
		return VerifySecret(secret, secretHash)
	}
}

func secretFromPayload(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case map[string]any:
		s, ok := x["secret"].(string)
		return s, ok && s != ""
	default:
		return "", false
	}
}
