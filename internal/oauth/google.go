package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type Google struct {
	client *http.Client
}

func NewGoogle() *Google {
	return &Google{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *Google) Name() string {
	return "google"
}

func (g *Google) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	const op = "oauth.Google.FetchProfile"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserinfoURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

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
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Profile{}, fmt.Errorf("%s: %w", op, err)
	}

	return Profile{Email: payload.Email, Nickname: payload.Name}, nil
}
