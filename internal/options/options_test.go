package options

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	stored map[string]string
	sets   map[string]string
}

func (f *fakeRepo) Options(context.Context) (map[string]string, error) {
	return f.stored, nil
}

func (f *fakeRepo) SetOption(_ context.Context, key, value string) error {
	if f.sets == nil {
		f.sets = make(map[string]string)
	}
	f.sets[key] = value
	return nil
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	o, err := Load(context.Background(), &fakeRepo{stored: map[string]string{}})
	require.NoError(t, err)

	assert.True(t, o.Bool(UserCanRegister))
	assert.Equal(t, 5, o.Int(LoginFailsThreshold))
	assert.Equal(t, "official", o.Get(PlayerNameRule))
}

func TestLoadPrefersStoredValues(t *testing.T) {
	o, err := Load(context.Background(), &fakeRepo{stored: map[string]string{
		RegsPerIP:       "-1",
		UserCanRegister: "0",
	}})
	require.NoError(t, err)

	assert.Equal(t, -1, o.Int(RegsPerIP))
	assert.False(t, o.Bool(UserCanRegister))
}

func TestSetWritesThrough(t *testing.T) {
	repo := &fakeRepo{stored: map[string]string{}}
	o, err := Load(context.Background(), repo)
	require.NoError(t, err)

	require.NoError(t, o.Set(context.Background(), RegsPerIP, "10"))

	assert.Equal(t, 10, o.Int(RegsPerIP))
	assert.Equal(t, "10", repo.sets[RegsPerIP])
}

func TestIntOnMalformedValueIsZero(t *testing.T) {
	o := NewStatic(map[string]string{UserInitialScore: "lots"})

	assert.Equal(t, 0, o.Int(UserInitialScore))
}
