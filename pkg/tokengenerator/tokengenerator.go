package tokengenerator

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PurposeConfirmation and PurposeResetPassword separate the digest keys
	// of the two token kinds.
	PurposeConfirmation  = "confirmation_token"
	PurposeResetPassword = "reset_password_token"

	keyIterations = 1 << 16
	keyLength     = 64
	maxAttempts   = 16
)

var (
	ErrEmptySecret = errors.New("token secret cannot be empty")
	ErrExhausted   = errors.New("could not generate an unused token")
)

// friendlyReplacer swaps characters that are easy to misread.
var friendlyReplacer = strings.NewReplacer("l", "s", "I", "x", "O", "y", "0", "z")

// Generator issues random URL-safe tokens and keyed digests of them.
type Generator struct {
	secret []byte

	mu   sync.Mutex
	keys map[string][]byte
}

func NewGenerator(secret string) (*Generator, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Generator{
		secret: []byte(secret),
		keys:   make(map[string][]byte),
	}, nil
}

// FriendlyToken returns a 20 character random token safe for URLs.
func (g *Generator) FriendlyToken() (string, error) {
	b := make([]byte, 15)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return friendlyReplacer.Replace(base64.URLEncoding.EncodeToString(b)), nil
}

// Digest returns the hex HMAC-SHA256 of raw under the key for purpose.
// A blank raw value has a blank digest.
func (g *Generator) Digest(purpose, raw string) string {
	if raw == "" {
		return ""
	}
	mac := hmac.New(sha256.New, g.key(purpose))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Generate returns a raw token and its digest, retrying while exists
// reports the digest as already in use.
func (g *Generator) Generate(ctx context.Context, purpose string, exists func(ctx context.Context, digest string) (bool, error)) (raw string, digest string, err error) {
	for i := 0; i < maxAttempts; i++ {
		raw, err = g.FriendlyToken()
		if err != nil {
			return "", "", err
		}
		digest = g.Digest(purpose, raw)
		taken, err := exists(ctx, digest)
		if err != nil {
			return "", "", err
		}
		if !taken {
			return raw, digest, nil
		}
	}
	return "", "", ErrExhausted
}

// GenerateRaw is Generate for tokens stored as-is.
func (g *Generator) GenerateRaw(ctx context.Context, exists func(ctx context.Context, raw string) (bool, error)) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		raw, err := g.FriendlyToken()
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, raw)
		if err != nil {
			return "", err
		}
		if !taken {
			return raw, nil
		}
	}
	return "", ErrExhausted
}

func (g *Generator) key(purpose string) []byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	if k, ok := g.keys[purpose]; ok {
		return k
	}
	k := pbkdf2.Key(g.secret, []byte("multi-email "+purpose), keyIterations, keyLength, sha256.New)
	g.keys[purpose] = k
	return k
}
