package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"google.golang.org/api/idtoken"
)

var (
	ErrInvalidGoogleToken = errors.New("invalid Google token")
	ErrNoPrimaryEmail     = errors.New("could not retrieve primary email from GitHub")
)

// GoogleVerifier turns a Google ID token into a verified email address.
type GoogleVerifier interface {
	VerifyEmail(ctx context.Context, idToken string) (string, error)
}

// GitHubExchanger trades an OAuth authorization code for the account's primary email.
type GitHubExchanger interface {
	PrimaryEmail(ctx context.Context, code string) (string, error)
}

type googleVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) GoogleVerifier {
	return &googleVerifier{clientID: clientID}
}

func (g *googleVerifier) VerifyEmail(ctx context.Context, token string) (string, error) {
	payload, err := idtoken.Validate(ctx, token, g.clientID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidGoogleToken, err)
	}
	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return "", fmt.Errorf("%w: no email claim", ErrInvalidGoogleToken)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return "", fmt.Errorf("%w: email not verified", ErrInvalidGoogleToken)
	}
	return email, nil
}

// GitHubError carries the provider's description of a failed code exchange.
type GitHubError struct {
	Description string
}

func (e *GitHubError) Error() string { return e.Description }

type GitHubClient struct {
	conf   *oauth2.Config
	apiURL string
}

func NewGitHubClient(clientID, clientSecret string) *GitHubClient {
	return &GitHubClient{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"user:email"},
		},
		apiURL: "https://api.github.com",
	}
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHubClient) PrimaryEmail(ctx context.Context, code string) (string, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			desc := re.ErrorDescription
			if desc == "" {
				desc = re.ErrorCode
			}
			if desc == "" {
				desc = "GitHub code exchange failed"
			}
			return "", &GitHubError{Description: desc}
		}
		return "", fmt.Errorf("github token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiURL+"/user/emails", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return "", fmt.Errorf("github emails: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github emails: unexpected status %d", resp.StatusCode)
	}

	var emails []githubEmail
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", fmt.Errorf("github emails: %w", err)
	}
	for _, e := range emails {
		if e.Primary && e.Email != "" {
			return e.Email, nil
		}
	}
	return "", ErrNoPrimaryEmail
}
