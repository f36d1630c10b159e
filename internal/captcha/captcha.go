// Package captcha implements the challenge service: a random phrase
// rendered as an image, bound to the caller's session. A stored phrase
// is consumed on its first verification attempt regardless of outcome,
// which keeps a captured answer from being replayed.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/storage"

	"github.com/steambap/captcha"
)

const (
	imageWidth  = 100
	imageHeight = 34

	phraseTTL = 5 * time.Minute
)

// PhraseStore keeps challenge phrases keyed by session id.
type PhraseStore interface {
	PutCaptcha(ctx context.Context, sessionID, phrase string, ttl time.Duration) error
	TakeCaptcha(ctx context.Context, sessionID string) (string, error)
}

type Service struct {
	store PhraseStore
}

func New(store PhraseStore) *Service {
	return &Service{store: store}
}

// Generate renders a fresh challenge image to w and binds its phrase to
// the session, replacing any previous phrase.
func (s *Service) Generate(ctx context.Context, sessionID string, w io.Writer) error {
	const op = "captcha.Generate"

	data, err := captcha.New(imageWidth, imageHeight)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.PutCaptcha(ctx, sessionID, data.Text, phraseTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := data.WriteImage(w); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Check compares the answer against the stored phrase, consuming it.
// The comparison is case-insensitive. A missing or expired phrase fails
// the check without error.
func (s *Service) Check(ctx context.Context, sessionID, answer string) (bool, error) {
	const op = "captcha.Check"

	phrase, err := s.store.TakeCaptcha(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrCaptchaNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return strings.EqualFold(phrase, answer), nil
}
