package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the JWT algorithm accepted by BearerJWT.
type SigningMethod string

const (
	// MethodEd25519 verifies EdDSA tokens with an Ed25519 public key.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 verifies HMAC-SHA256 tokens with a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// JWTConfig configures bearer token verification.
type JWTConfig struct {
	SigningMethod SigningMethod
	// Secret is the HS256 shared key.
	Secret []byte
	// PublicKey is the Ed25519 verify key, raw 32 bytes or PEM.
	PublicKey []byte
	// PrivateKey is optional and only needed to Issue Ed25519 tokens.
	PrivateKey []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

// BearerJWT identifies callers by the subject of a verified bearer token.
type BearerJWT struct {
	config JWTConfig
	verify interface{}
	sign   interface{}
}

// NewBearerJWT validates cfg and parses its keys once.
func NewBearerJWT(cfg JWTConfig) (*BearerJWT, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	b := &BearerJWT{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
		b.verify = cfg.Secret
		b.sign = cfg.Secret
	case MethodEd25519:
		pub, err := parseEdPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		b.verify = pub
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			b.sign = priv
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	return b, nil
}

// Resolve returns "sub:<subject>" for a valid token, "" when the request has
// no Authorization header, and ErrInvalidIdentity otherwise.
func (b *BearerJWT) Resolve(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", nil
	}
	token, ok := bearerToken(header)
	if !ok {
		return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidIdentity)
	}
	subject, err := b.Subject(token)
	if err != nil {
		return "", err
	}
	return "sub:" + subject, nil
}

// Subject verifies tokenStr and returns its sub claim.
func (b *BearerJWT) Subject(tokenStr string) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{b.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if b.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(b.config.Leeway))
	}
	if b.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(b.config.Issuer))
	}
	if b.config.Audience != "" {
		options = append(options, jwt.WithAudience(b.config.Audience))
	}

	parser := jwt.NewParser(options...)
	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != b.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return b.verify, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	if !token.Valid {
		return "", ErrInvalidIdentity
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrInvalidIdentity)
	}
	return subject, nil
}

// Issue signs a token for subject valid for ttl. It is meant for tooling and
// tests; production tokens come from the identity provider.
func (b *BearerJWT) Issue(subject string, ttl time.Duration) (string, error) {
	if b.sign == nil {
		return "", errors.New("no signing key configured")
	}
	if ttl <= 0 {
		return "", errors.New("invalid TTL configuration")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    b.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if b.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{b.config.Audience}
	}
	return jwt.NewWithClaims(b.method(), claims).SignedString(b.sign)
}

func (b *BearerJWT) method() jwt.SigningMethod {
	switch b.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
