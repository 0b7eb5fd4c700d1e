package bling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/xhttp"
)

var (
	ErrNoToken      = errors.New("no Bling token stored, run the connect flow first")
	ErrTokenExpired = errors.New("token expired and no refresh token available")
)

const loadTimeout = 5 * time.Second

// TokenChecker reports whether an ERP credential is available.
type TokenChecker interface {
	HasToken(ctx context.Context) (bool, error)
}

var (
	_ TokenChecker       = (*DBTokenSource)(nil)
	_ oauth2.TokenSource = (*DBTokenSource)(nil)
)

// DBTokenSource serves the stored Bling token, refreshing and persisting it
// when it expires.
type DBTokenSource struct {
	config *oauth2.Config
	store  storage.TokenStore
	mu     sync.Mutex
	token  *oauth2.Token
}

func NewDBTokenSource(config *oauth2.Config, store storage.TokenStore) *DBTokenSource {
	return &DBTokenSource{
		config: config,
		store:  store,
	}
}

func (s *DBTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	return s.TokenContext(ctx)
}

func (s *DBTokenSource) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && s.token.Valid() {
		return s.token, nil
	}

	token, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	if token.Valid() {
		s.token = token
		return token, nil
	}

	return s.refresh(ctx, token)
}

// Refresh exchanges the stored refresh token regardless of expiry.
func (s *DBTokenSource) Refresh(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	token.Expiry = time.Unix(1, 0)
	return s.refresh(ctx, token)
}

// Exchange trades an authorization code for a token and stores it.
func (s *DBTokenSource) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(withHTTPClient(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	s.token = token
	return token, nil
}

func (s *DBTokenSource) HasToken(ctx context.Context) (bool, error) {
	_, err := s.store.GetToken(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *DBTokenSource) load(ctx context.Context) (*oauth2.Token, error) {
	stored, err := s.store.GetToken(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
		Expiry:       stored.Expiry,
	}, nil
}

func (s *DBTokenSource) refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token.RefreshToken == "" {
		return nil, ErrTokenExpired
	}

	newToken, err := s.config.TokenSource(withHTTPClient(ctx), token).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := s.save(ctx, newToken); err != nil {
		return nil, fmt.Errorf("failed to save refreshed token: %w", err)
	}

	s.token = newToken
	return newToken, nil
}

func (s *DBTokenSource) save(ctx context.Context, token *oauth2.Token) error {
	return s.store.UpsertToken(ctx, storage.Token{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	})
}

func withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, xhttp.NewHTTPClient(xhttp.WithTimeout(10*time.Second)))
}
