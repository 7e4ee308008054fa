package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenServiceImpl implements the TokenService interface. Access and refresh
// tokens are signed with independent keys so the two classes can be rotated
// separately.
type TokenServiceImpl struct {
	signingKey        []byte
	refreshSigningKey []byte
	tokenExpiration   int // minutes
	refreshDuration   int // days
	issuer            string
	audience          jwt.ClaimStrings
	logger            Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(config Config, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}

	refreshKey := []byte(config.GetRefreshSigningKey())
	if len(refreshKey) == 0 {
		refreshKey = []byte(config.GetSigningKey())
	}

	return &TokenServiceImpl{
		signingKey:        []byte(config.GetSigningKey()),
		refreshSigningKey: refreshKey,
		tokenExpiration:   config.GetTokenExpiration(),
		refreshDuration:   config.GetRefreshTokenDuration(),
		issuer:            config.GetIssuer(),
		audience:          config.GetAudience(),
		logger:            logger,
	}
}

// GenerateAccessToken creates a short-lived JWT for the given identity
func (ts *TokenServiceImpl) GenerateAccessToken(identity Identity) (string, error) {
	now := time.Now().UTC()
	claims := ts.newClaims(identity, now, now.Add(time.Duration(ts.tokenExpiration)*time.Minute), TokenTypeAccess)
	return ts.signClaims(claims, ts.signingKey)
}

// GenerateRefreshToken creates a long-lived JWT for the given identity and
// returns its expiry so the caller can persist the revocation record.
func (ts *TokenServiceImpl) GenerateRefreshToken(identity Identity) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(time.Duration(ts.refreshDuration) * 24 * time.Hour)
	claims := ts.newClaims(identity, now, expiresAt, TokenTypeRefresh)

	token, err := ts.signClaims(claims, ts.refreshSigningKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// Validate parses and validates an access token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	return ts.parse(tokenString, ts.signingKey, TokenTypeAccess)
}

// ValidateRefreshToken parses and validates a refresh token string
func (ts *TokenServiceImpl) ValidateRefreshToken(tokenString string) (AuthClaims, error) {
	return ts.parse(tokenString, ts.refreshSigningKey, TokenTypeRefresh)
}

func (ts *TokenServiceImpl) newClaims(identity Identity, issuedAt, expiresAt time.Time, tokenType string) *JWTClaims {
	return &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:      identity.ID(),
		UserRole: identity.Role(),
		Type:     tokenType,
	}
}

func (ts *TokenServiceImpl) signClaims(claims *JWTClaims, key []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

func (ts *TokenServiceImpl) parse(tokenString string, key []byte, wantType string) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrTokenMalformed
	}

	if claims.Type != wantType {
		// a refresh token presented as an access token, or vice versa
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func (ts *TokenServiceImpl) tokenDefaults() tokenDefaults {
	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	return tokenDefaults{
		issuer:   ts.issuer,
		audience: aud,
		ttl:      time.Duration(ts.tokenExpiration) * time.Minute,
	}
}
