package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"
)

// NewClientCredentialsHTTPClient returns an *http.Client that authenticates
// against the control-plane using the OAuth2 client-credentials grant,
// refreshing tokens as they expire.
func NewClientCredentialsHTTPClient(ctx context.Context, tokenURL, clientID, clientSecret string, scopes []string) *http.Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return cfg.Client(ctx)
}
