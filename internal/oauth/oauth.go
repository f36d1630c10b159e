// Package oauth abstracts external identity providers. A provider
// exchanges an access token for a verified profile; which provider
// handles a login is selected by name at the call site.
package oauth

import (
	"context"
	"errors"
)

var (
	ErrUnknownProvider = errors.New("unknown oauth provider")

	// ErrUnsupportedProvider is returned when a provider cannot supply
	// the email address a local account requires.
	ErrUnsupportedProvider = errors.New("unsupported oauth provider")
)

// Profile is the verified identity an external provider vouches for.
type Profile struct {
	Email    string
	Nickname string
}

type Provider interface {
	Name() string
	FetchProfile(ctx context.Context, accessToken string) (Profile, error)
}

// Registry holds the configured providers keyed by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}

	return &Registry{providers: m}
}

func (r *Registry) Provider(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}

	return p, nil
}
