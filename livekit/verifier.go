package livekit

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kbukum/medscribe/auth/jwt"
	apperrors "github.com/kbukum/medscribe/errors"
)

// Verifier checks tokens minted with the same API key and secret.
type Verifier struct {
	svc *jwt.Service[*AccessClaims]
}

// NewVerifier creates a verifier. now may be nil.
func NewVerifier(apiKey, apiSecret string, now func() time.Time) (*Verifier, error) {
	var opts []jwt.Option
	if now != nil {
		opts = append(opts, jwt.WithClock(now))
	}
	svc, err := jwt.NewService(jwt.Config{Secret: apiSecret, Method: jwt.HS256, Issuer: apiKey}, newClaims, opts...)
	if err != nil {
		return nil, fmt.Errorf("livekit: %w", err)
	}
	return &Verifier{svc: svc}, nil
}

// Verify validates the signature, issuer and time window of token.
// Failures are TokenExpired or InvalidToken app errors.
func (v *Verifier) Verify(token string) (*AccessClaims, error) {
	claims, err := v.svc.Parse(token)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired().WithCause(err)
		}
		return nil, apperrors.InvalidToken().WithCause(err)
	}
	if claims.Video == nil || !claims.Video.RoomJoin {
		return nil, apperrors.InvalidToken().WithDetail("reason", "no room join grant")
	}
	return claims, nil
}
