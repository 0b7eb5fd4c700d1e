package bling

import (
	"golang.org/x/oauth2"
)

const (
	authURL  = "https://www.bling.com.br/Api/v3/oauth/authorize"
	tokenURL = "https://www.bling.com.br/Api/v3/oauth/token" //nolint:gosec // not credentials, just endpoint URL
)

type Provider interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURL() string
}

// NewConfig builds the OAuth client for the Bling v3 API. Bling expects the
// client credentials as HTTP basic auth on the token endpoint.
func NewConfig(p Provider) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.GetClientID(),
		ClientSecret: p.GetClientSecret(),
		RedirectURL:  p.GetRedirectURL(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}
