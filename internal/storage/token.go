package storage

import (
	"context"
	"time"
)

// Token is the single stored Bling OAuth credential.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	UpdatedAt    time.Time
}

type TokenStore interface {
	// GetToken returns ErrNotFound when no credential has been stored yet.
	GetToken(ctx context.Context) (Token, error)
	UpsertToken(ctx context.Context, t Token) error
}
