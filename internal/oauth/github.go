package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const githubUserURL = "https://api.github.com/user"

type GitHub struct {
	client *http.Client
}

func NewGitHub() *GitHub {
	return &GitHub{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GitHub) Name() string {
	return "github"
}

func (g *GitHub) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	const op = "oauth.GitHub.FetchProfile"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubUserURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("%s: unexpected status %d", op, resp.StatusCode)
	}

	var payload struct {
		Email string `json:"email"`
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return Profile{Email: payload.Email, Nickname: payload.Login}, nil
}
