package ads

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// RefreshTokenSource exchanges a long-lived OAuth refresh token for access
// tokens on demand. Tokens are cached and renewed by the oauth2 package.
func RefreshTokenSource(clientID, clientSecret, refreshToken string) func(ctx context.Context) (string, error) {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
	}
	source := conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refreshToken})

	return func(ctx context.Context) (string, error) {
		token, err := source.Token()
		if err != nil {
			return "", fmt.Errorf("ads: token refresh failed: %w", err)
		}
		return token.AccessToken, nil
	}
}
