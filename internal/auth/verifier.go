// Package auth verifies HS256 bearer tokens that carry the caller's tenant and role.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMalformed    = errors.New("auth: malformed token")
	ErrBadSignature = errors.New("auth: bad signature")
	ErrExpired      = errors.New("auth: token expired")
)

// Verifier validates HS256 JWTs and extracts tenant and role claims.
type Verifier struct {
	Secret      []byte
	TenantClaim string
	RoleClaim   string
	Now         func() time.Time
}

type Principal struct {
	Tenant string
	Role   string
}

// NewVerifier returns nil for an empty secret, meaning bearer tokens are not accepted.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{Secret: []byte(secret), TenantClaim: "tenant", RoleClaim: "role", Now: time.Now}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, ErrMalformed
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := decodeSegment(segs[0], &hdr); err != nil {
		return Principal{}, err
	}
	if hdr.Alg != "HS256" {
		return Principal{}, fmt.Errorf("%w: unsupported alg %q", ErrMalformed, hdr.Alg)
	}
	sig, err := base64.RawURLEncoding.DecodeString(segs[2])
	if err != nil {
		return Principal{}, ErrMalformed
	}
	if !hmac.Equal(v.sign(segs[0]+"."+segs[1]), sig) {
		return Principal{}, ErrBadSignature
	}

	var claims map[string]any
	if err := decodeSegment(segs[1], &claims); err != nil {
		return Principal{}, err
	}
	if exp, ok := claims["exp"].(float64); ok && v.Now().Unix() >= int64(exp) {
		return Principal{}, ErrExpired
	}
	tenant, _ := claims[v.TenantClaim].(string)
	role, _ := claims[v.RoleClaim].(string)
	if tenant == "" {
		return Principal{}, fmt.Errorf("%w: missing %s claim", ErrMalformed, v.TenantClaim)
	}
	return Principal{Tenant: tenant, Role: strings.ToLower(role)}, nil
}

// Sign issues a token for claims. Used by tooling and tests.
func (v *Verifier) Sign(claims map[string]any) (string, error) {
	hdr, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	body, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	input := base64.RawURLEncoding.EncodeToString(hdr) + "." + base64.RawURLEncoding.EncodeToString(body)
	return input + "." + base64.RawURLEncoding.EncodeToString(v.sign(input)), nil
}

func (v *Verifier) sign(input string) []byte {
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write([]byte(input))
	return mac.Sum(nil)
}

func decodeSegment(seg string, dst any) error {
	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return ErrMalformed
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
