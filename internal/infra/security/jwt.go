package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gtaroom/GTA-GAME-sub003/internal/core/domain"
	"github.com/gtaroom/GTA-GAME-sub003/internal/infra/config"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid access token")

// AccessTokenClaims are the claims issued by the platform's auth service.
type AccessTokenClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier validates RS256 bearer tokens and turns them into principals.
type TokenVerifier struct {
	keys   KeyProvider
	parser *jwt.Parser
}

// NewTokenVerifier configures issuer, audience and clock leeway checks from
// cfg. Empty issuer or audience disables that check.
func NewTokenVerifier(keys KeyProvider, cfg config.JWTSettings) *TokenVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if issuer := strings.TrimSpace(cfg.Issuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(cfg.Audience); audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	return &TokenVerifier{keys: keys, parser: jwt.NewParser(opts...)}
}

// Verify checks the signature and registered claims of raw and returns the
// principal it names. The uid claim falls back to sub.
func (v *TokenVerifier) Verify(raw string) (*domain.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	claims := &AccessTokenClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return v.keys.GetVerificationKey(kid)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: missing uid claim", ErrInvalidToken)
	}

	return &domain.Principal{ID: userID, Role: strings.TrimSpace(claims.Role)}, nil
}
