// Package options exposes runtime site configuration as a narrow
// key-to-value reader. Values live in the options table and are loaded
// once at boot; the admin surface mutates them through Set.
package options

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Option keys consumed by the account-lifecycle workflows.
const (
	UserCanRegister        = "user_can_register"
	RequireVerification    = "require_verification"
	RegsPerIP              = "regs_per_ip"
	UserInitialScore       = "user_initial_score"
	LoginFailsThreshold    = "login_fails_threshold"
	RegisterWithPlayer     = "register_with_player_name"
	PlayerNameRule         = "player_name_rule"
	CustomPlayerNameRegexp = "custom_player_name_regexp"
	PlayerNameLengthMin    = "player_name_length_min"
	PlayerNameLengthMax    = "player_name_length_max"
	PasswordLengthMin      = "password_length_min"
	PasswordLengthMax      = "password_length_max"
)

var defaults = map[string]string{
	UserCanRegister:        "1",
	RequireVerification:    "1",
	RegsPerIP:              "3",
	UserInitialScore:       "1000",
	LoginFailsThreshold:    "5",
	RegisterWithPlayer:     "1",
	PlayerNameRule:         "official",
	CustomPlayerNameRegexp: "",
	PlayerNameLengthMin:    "3",
	PlayerNameLengthMax:    "16",
	PasswordLengthMin:      "8",
	PasswordLengthMax:      "32",
}

// Repo persists option rows.
type Repo interface {
	Options(ctx context.Context) (map[string]string, error)
	SetOption(ctx context.Context, key, value string) error
}

type Options struct {
	mu     sync.RWMutex
	values map[string]string
	repo   Repo
}

// Load reads all persisted options, filling gaps from defaults.
func Load(ctx context.Context, repo Repo) (*Options, error) {
	const op = "options.Load"

	stored, err := repo.Options(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	values := make(map[string]string, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	for k, v := range stored {
		values[k] = v
	}

	return &Options{values: values, repo: repo}, nil
}

// NewStatic builds an in-memory reader seeded with defaults plus the
// given overrides. Mutations are not persisted.
func NewStatic(overrides map[string]string) *Options {
	values := make(map[string]string, len(defaults)+len(overrides))
	for k, v := range defaults {
		values[k] = v
	}
	for k, v := range overrides {
		values[k] = v
	}

	return &Options{values: values}
}

func (o *Options) Get(key string) string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.values[key]
}

func (o *Options) Int(key string) int {
	n, err := strconv.Atoi(o.Get(key))
	if err != nil {
		return 0
	}

	return n
}

func (o *Options) Bool(key string) bool {
	v := o.Get(key)

	return v == "1" || v == "true"
}

// Set writes the option through to the repository and updates the
// cached value.
func (o *Options) Set(ctx context.Context, key, value string) error {
	const op = "options.Set"

	if o.repo != nil {
		if err := o.repo.SetOption(ctx, key, value); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	o.mu.Lock()
	o.values[key] = value
	o.mu.Unlock()

	return nil
}
