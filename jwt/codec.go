package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature algorithm used for access tokens.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC-SHA256 secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key and verifies with the public key.
	MethodEd25519 SigningMethod = "ed25519"
)

const (
	defaultAccessTTL = 15 * time.Minute
	minHMACKeyBytes  = 32
	roleSeparator    = ","
)

var (
	// ErrExpired is returned when the token's exp claim is not in the future.
	ErrExpired = errors.New("access token expired")
	// ErrBadSignature is returned when the signature, algorithm, or key id does not verify.
	ErrBadSignature = errors.New("access token signature invalid")
	// ErrMalformed is returned when the token cannot be decoded or its claims are unusable.
	ErrMalformed = errors.New("access token malformed")
)

// Config controls token issuance and verification. It is read once by
// [NewCodec] and never mutated afterwards.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte

	// Now overrides the wall clock. Nil means time.Now.
	Now func() time.Time
}

// Subject is the principal state embedded into a token at issuance.
type Subject struct {
	ID    string
	Email string
	Roles []string
}

// Claims is the decoded, verified payload of an access token.
type Claims struct {
	Subject   string
	Email     string
	Roles     []string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether the token carried the named role at issuance.
func (c *Claims) HasRole(name string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == name {
			return true
		}
	}
	return false
}

type accessClaims struct {
	Email string `json:"email"`
	Roles string `json:"roles"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens. It holds no mutable state and is
// safe for concurrent use.
type Codec struct {
	config Config
	method jwt.SigningMethod
	sign   interface{}
	verify interface{}
	now    func() time.Time
}

// NewCodec validates cfg and prepares signing material.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.AccessTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	c := &Codec{config: cfg, now: cfg.Now}
	if c.now == nil {
		c.now = time.Now
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACKeyBytes {
			return nil, fmt.Errorf("hs256 requires a key of at least %d bytes", minHMACKeyBytes)
		}
		c.method = jwt.SigningMethodHS256
		c.sign = cfg.PrivateKey
		c.verify = cfg.PrivateKey
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			c.sign = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			c.verify = pub
		}
		if c.verify == nil && len(cfg.VerifyKeys) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if cfg.SigningMethod == MethodEd25519 {
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return c, nil
}

// TTL returns the fixed access-token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.config.AccessTTL
}

// Issue mints a token for s that expires AccessTTL from now. The returned
// time is the exp claim exactly as encoded (second precision).
func (c *Codec) Issue(s Subject) (string, time.Time, error) {
	if c.sign == nil {
		return "", time.Time{}, errors.New("codec has no signing key")
	}
	if s.ID == "" {
		return "", time.Time{}, errors.New("subject id is required")
	}
	for _, r := range s.Roles {
		if r == "" || strings.Contains(r, roleSeparator) {
			return "", time.Time{}, fmt.Errorf("role name %q cannot be encoded", r)
		}
	}

	now := c.now()
	exp := jwt.NewNumericDate(now.Add(c.config.AccessTTL))
	claims := accessClaims{
		Email: s.Email,
		Roles: strings.Join(s.Roles, roleSeparator),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
			Issuer:    c.config.Issuer,
		},
	}
	if c.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.config.Audience}
	}

	token := jwt.NewWithClaims(c.method, claims)
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}

	signed, err := token.SignedString(c.sign)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, exp.Time, nil
}

// Verify checks signature and expiry and decodes the claims. Errors wrap
// exactly one of [ErrExpired], [ErrBadSignature] or [ErrMalformed].
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}
	if c.config.Audience != "" {
		options = append(options, jwt.WithAudience(c.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &accessClaims{}, c.keyFunc)
	if err != nil {
		return nil, classify(err)
	}

	ac, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if ac.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}

	out := &Claims{
		Subject:   ac.Subject,
		Email:     ac.Email,
		Roles:     splitRoles(ac.Roles),
		Issuer:    ac.Issuer,
		ExpiresAt: ac.ExpiresAt.Time,
	}
	if ac.IssuedAt != nil {
		out.IssuedAt = ac.IssuedAt.Time
	}
	return out, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(c.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := c.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		if c.config.SigningMethod == MethodEd25519 {
			return parseEdPublicKey(key)
		}
		return key, nil
	}

	if c.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != c.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}

	if c.verify == nil {
		return nil, errors.New("codec has no verification key")
	}
	return c.verify, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func splitRoles(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, roleSeparator)
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
