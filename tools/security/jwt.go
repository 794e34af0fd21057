package security

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"ChatLink/tools/errs"
)

// Options controls token verification parameters.
type Options struct {
	Secret []byte // HMAC secret (from ENV/KMS in production)
	Alg    string // HS256/HS384/HS512 (default HS256)
	Leeway time.Duration
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256"}
}

// Identity is what the auth collaborator hands back for a valid handshake
// credential. Token issuance lives in a separate service; the gateway only
// ever verifies.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// Verify checks the presented token and extracts the identity claims.
// Every failure maps to ErrAuthentication so callers reject the handshake
// without leaking parser detail.
func Verify(opts Options, token string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errs.ErrAuthentication.WithDetail("no token provided")
	}
	if _, err := signingMethod(opts.Alg); err != nil {
		return nil, errs.ErrAuthentication.WithDetail(err.Error())
	}

	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (interface{}, error) {
		// HMAC family only
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	}, jwtlib.WithLeeway(opts.Leeway))
	if err != nil {
		return nil, errs.ErrAuthentication.WithDetail(err.Error())
	}
	if !parsed.Valid {
		return nil, errs.ErrAuthentication.WithDetail("invalid token")
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errs.ErrAuthentication.WithDetail("unexpected claims type")
	}

	id := &Identity{
		UserID: stringClaim(claims, "userId"),
		Email:  stringClaim(claims, "email"),
		Role:   stringClaim(claims, "role"),
	}
	if id.UserID == "" {
		// fall back to the standard subject claim
		id.UserID = stringClaim(claims, "sub")
	}
	if id.UserID == "" {
		return nil, errs.ErrAuthentication.WithDetail("token carries no user id")
	}
	return id, nil
}

// BearerToken extracts a token from an "Authorization: Bearer x" value.
// Returns "" if the header is not bearer-shaped.
func BearerToken(authz string) string {
	authz = strings.TrimSpace(authz)
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

func stringClaim(claims jwtlib.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s", alg)
	}
}
