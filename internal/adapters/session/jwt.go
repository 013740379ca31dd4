package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/tessera/internal/core/domain"
	"github.com/vncsmyrnk/tessera/internal/core/ports"
)

type ballotClaims struct {
	Kind       string `json:"kind"`
	ElectionID string `json:"electionId"`
	TokenID    string `json:"tokenId"`
	jwt.RegisteredClaims
}

// JWTIssuer signs ballot sessions as short-lived HS256 tokens.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTIssuer(secret string, ttl time.Duration) ports.BallotSessionIssuer {
	return &JWTIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (i *JWTIssuer) Issue(session domain.BallotSession) (string, error) {
	now := i.now()
	claims := ballotClaims{
		Kind:       session.Kind,
		ElectionID: session.ElectionID.String(),
		TokenID:    session.TokenID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign ballot session: %w", err)
	}
	return signed, nil
}

func (i *JWTIssuer) Parse(tokenString string) (*domain.BallotSession, error) {
	claims := &ballotClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSession, err)
	}
	if claims.Kind != domain.SessionKindToken {
		return nil, domain.ErrInvalidSession
	}

	electionID, errE := uuid.Parse(claims.ElectionID)
	tokenID, errT := uuid.Parse(claims.TokenID)
	if err := errors.Join(errE, errT); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSession, err)
	}

	return &domain.BallotSession{
		Kind:       claims.Kind,
		ElectionID: electionID,
		TokenID:    tokenID,
	}, nil
}
