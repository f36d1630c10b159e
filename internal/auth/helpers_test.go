package auth_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mwx2006/blessing-skin-server/internal/auth"
	"github.com/mwx2006/blessing-skin-server/internal/events"
	"github.com/mwx2006/blessing-skin-server/internal/models"
	"github.com/mwx2006/blessing-skin-server/internal/options"
	"github.com/mwx2006/blessing-skin-server/internal/storage"
	storagerds "github.com/mwx2006/blessing-skin-server/internal/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memStore is an in-memory UserStore and PlayerStore.
type memStore struct {
	mu      sync.Mutex
	nextUID int64
	nextPID int64
	users   map[int64]models.User
	players map[string]models.Player
}

func newMemStore() *memStore {
	return &memStore{
		nextUID: 1,
		nextPID: 1,
		users:   make(map[int64]models.User),
		players: make(map[string]models.Player),
	}
}

func (m *memStore) SaveUser(_ context.Context, u *models.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return 0, storage.ErrUserExists
		}
	}

	uid := m.nextUID
	m.nextUID++
	u.UID = uid
	m.users[uid] = *u

	return uid, nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}

	return models.User{}, storage.ErrUserNotFound
}

func (m *memStore) UserByID(_ context.Context, uid int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[uid]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, nil
}

func (m *memStore) UpdatePassword(_ context.Context, uid int64, passHash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[uid]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.PassHash = passHash
	m.users[uid] = u

	return nil
}

func (m *memStore) SetVerified(_ context.Context, uid int64, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[uid]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.Verified = verified
	m.users[uid] = u

	return nil
}

func (m *memStore) CountRegistrationsByIP(_ context.Context, ip string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, u := range m.users {
		if u.IP == ip {
			count++
		}
	}

	return count, nil
}

func (m *memStore) SavePlayer(_ context.Context, p *models.Player) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.players[p.Name]; ok {
		return 0, storage.ErrPlayerExists
	}

	pid := m.nextPID
	m.nextPID++
	p.PID = pid
	m.players[p.Name] = *p

	return pid, nil
}

func (m *memStore) PlayerByName(_ context.Context, name string) (models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[name]
	if !ok {
		return models.Player{}, storage.ErrPlayerNotFound
	}

	return p, nil
}

// fakeCaptcha accepts any answer while pass is true.
type fakeCaptcha struct {
	pass bool
}

func (f *fakeCaptcha) Check(_ context.Context, _, _ string) (bool, error) {
	return f.pass, nil
}

// fakeMailer records dispatched messages and optionally fails.
type fakeMailer struct {
	mu   sync.Mutex
	sent []models.Message
	fail error
}

func (f *fakeMailer) Send(_ context.Context, msg models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, msg)

	return nil
}

func (f *fakeMailer) messages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Message, len(f.sent))
	copy(out, f.sent)

	return out
}

// recorder subscribes to every lifecycle event and keeps the firing
// order.
type recorder struct {
	mu    sync.Mutex
	names []string
}

func recordEvents(d *events.Dispatcher) *recorder {
	rec := &recorder{}

	all := []string{
		events.LoginAttempt, events.LoginReady, events.LoginSucceeded, events.LoginFailed,
		events.LogoutBefore, events.LogoutAfter,
		events.RegistrationAttempt, events.RegistrationReady, events.RegistrationCompleted,
		events.ForgotAttempt, events.ForgotReady, events.ForgotSent, events.ForgotFailed,
		events.ResetBefore, events.ResetAfter,
	}
	for _, name := range all {
		name := name
		d.On(name, func(_ []any) {
			rec.mu.Lock()
			rec.names = append(rec.names, name)
			rec.mu.Unlock()
		})
	}

	return rec
}

func (r *recorder) fired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.names))
	copy(out, r.names)

	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.names = nil
	r.mu.Unlock()
}

// fixture wires an Auth service over an in-memory store and a
// miniredis-backed throttle, cooldown and session store.
type fixture struct {
	auth    *auth.Auth
	store   *memStore
	redis   *storagerds.RedisRepo
	mr      *miniredis.Miniredis
	mailer  *fakeMailer
	queue   *fakeMailer
	captcha *fakeCaptcha
	events  *recorder

	log    *slog.Logger
	params auth.Params
}

func newFixture(t *testing.T, overrides map[string]string) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rds := storagerds.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	store := newMemStore()
	mailer := &fakeMailer{}
	queue := &fakeMailer{}
	capt := &fakeCaptcha{pass: true}

	dispatcher := events.NewDispatcher()
	rec := recordEvents(dispatcher)

	opts := options.NewStatic(overrides)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	params := auth.Params{
		Users:    store,
		Players:  store,
		Throttle: rds,
		Cooldown: rds,
		Sessions: rds,
		Captcha:  capt,

		Mailer:            mailer,
		VerificationQueue: queue,
		RecoveryEnabled:   true,

		Dispatcher: dispatcher,
		Options:    opts,

		Secret:  "test-secret",
		BaseURL: "https://skins.example.com",

		SessionTTL:           time.Hour,
		ResetTokenTTL:        time.Hour,
		VerificationTokenTTL: time.Hour,
		MailCooldown:         time.Hour,
	}

	return &fixture{
		auth:    auth.New(log, params),
		store:   store,
		redis:   rds,
		mr:      mr,
		mailer:  mailer,
		queue:   queue,
		captcha: capt,
		events:  rec,
		log:     log,
		params:  params,
	}
}

// disableRecovery rebuilds the service with the recovery workflow off,
// keeping all stores and fakes.
func (f *fixture) disableRecovery() {
	f.params.RecoveryEnabled = false
	f.auth = auth.New(f.log, f.params)
}

// seedUser registers an account directly in the store with a real hash.
func (f *fixture) seedUser(t *testing.T, email, password string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Email:      email,
		Nickname:   "seeded",
		PassHash:   hash,
		Permission: models.PermissionNormal,
		RegisterAt: time.Now(),
	}

	uid, err := f.store.SaveUser(context.Background(), &user)
	require.NoError(t, err)
	user.UID = uid

	return user
}

func (f *fixture) seedPlayer(t *testing.T, uid int64, name string) {
	t.Helper()

	_, err := f.store.SavePlayer(context.Background(), &models.Player{UID: uid, Name: name})
	require.NoError(t, err)
}
