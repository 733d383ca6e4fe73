package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"phone-auth-service/internal/bypass"
	"phone-auth-service/internal/hashing"
	"phone-auth-service/internal/models"
	"phone-auth-service/internal/notification"
	"phone-auth-service/internal/phone"
	"phone-auth-service/internal/repository/scylla"
	"phone-auth-service/internal/token"
	"phone-auth-service/internal/username"
	"phone-auth-service/internal/verification"
)

var (
	errBoom = errors.New("boom")
	base    = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
)

type memUsers struct {
	mu       sync.Mutex
	hasher   hashing.PhoneHasher
	byID     map[string]*models.User
	seq      int
	failMark bool
	deleted  []string
}

func newMemUsers() *memUsers {
	return &memUsers{hasher: hashing.NewPhoneHasher(), byID: make(map[string]*models.User)}
}

func (m *memUsers) Create(_ context.Context, p scylla.CreateUserParams) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hash := m.hasher.Hash(p.Phone)
	for _, u := range m.byID {
		if u.PhoneHash == hash {
			return nil, scylla.ErrPhoneTaken
		}
		if u.Username == p.Username {
			return nil, scylla.ErrUsernameTaken
		}
	}
	m.seq++
	u := &models.User{
		UserID:         fmt.Sprintf("user-%d", m.seq),
		Name:           p.Name,
		Username:       p.Username,
		Phone:          p.Phone,
		PhoneEncrypted: "enc:" + p.Phone,
		PhoneHash:      hash,
		CreatedAt:      base,
		UpdatedAt:      base,
	}
	m.byID[u.UserID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) find(match func(*models.User) bool) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.UserID == id }), nil
}

func (m *memUsers) FindByPhoneHash(_ context.Context, hash string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.PhoneHash == hash }), nil
}

func (m *memUsers) FindByUsernameExact(_ context.Context, name string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == name }), nil
}

func (m *memUsers) ExistsByPhoneHash(ctx context.Context, hash string) (bool, error) {
	u, _ := m.FindByPhoneHash(ctx, hash)
	return u != nil, nil
}

func (m *memUsers) ExistsByUsername(ctx context.Context, name string) (bool, error) {
	u, _ := m.FindByUsernameExact(ctx, name)
	return u != nil, nil
}

func (m *memUsers) MarkPhoneVerified(_ context.Context, user *models.User, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMark {
		return errBoom
	}
	stored, ok := m.byID[user.UserID]
	if !ok {
		return errors.New("no such user")
	}
	stored.PhoneVerifiedAt = &at
	user.PhoneVerifiedAt = &at
	return nil
}

func (m *memUsers) Delete(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, user.UserID)
	m.deleted = append(m.deleted, user.UserID)
	return nil
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type sent struct {
	userID string
	msg    notification.Message
}

type recordingNotifier struct {
	mu   sync.Mutex
	fail bool
	sent []sent
}

func (n *recordingNotifier) Notify(_ context.Context, user *models.User, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errBoom
	}
	n.sent = append(n.sent, sent{userID: user.UserID, msg: msg})
	return nil
}

type fakeTokens struct {
	mu     sync.Mutex
	fail   bool
	active map[string]string
	n      int
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{active: make(map[string]string)}
}

func (f *fakeTokens) CreateToken(_ context.Context, user *models.User, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return "", errBoom
	}
	f.n++
	raw := fmt.Sprintf("tok-%d", f.n)
	f.active[raw] = user.UserID
	return raw, nil
}

func (f *fakeTokens) Parse(_ context.Context, raw string) (*token.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.active[raw]
	if !ok {
		return nil, token.ErrInvalidToken
	}
	c := &token.Claims{}
	c.ID = raw
	c.Subject = userID
	return c, nil
}

func (f *fakeTokens) Revoke(_ context.Context, claims *token.Claims) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errBoom
	}
	delete(f.active, claims.ID)
	return nil
}

type fakeIndex struct {
	indexed []string
	results []models.User
	total   int64
	err     error
	offset  int
	limit   int
}

func (f *fakeIndex) IndexUser(_ context.Context, user *models.User) error {
	f.indexed = append(f.indexed, user.UserID)
	return nil
}

func (f *fakeIndex) SearchByUsernameOrName(_ context.Context, term string, offset, limit int) ([]models.User, int64, error) {
	f.offset, f.limit = offset, limit
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []models.User
	for _, u := range f.results {
		if strings.HasPrefix(u.Username, term) || strings.HasPrefix(u.Name, term) {
			out = append(out, u)
		}
	}
	return out, f.total, nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []models.AuthEvent
}

func (r *recordingAudit) Record(_ context.Context, ev models.AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	users      *memUsers
	hasher     hashing.PhoneHasher
	loginStore *verification.MemoryStore
	phoneStore *verification.MemoryStore
	notifier   *recordingNotifier
	tokens     *fakeTokens
	index      *fakeIndex
	audit      *recordingAudit
	clock      *clock
	factory    *ServiceFactory
}

func newHarness(environment string, magic map[bypass.Feature]string) *harness {
	c := &clock{now: base}
	h := &harness{
		users:      newMemUsers(),
		hasher:     hashing.NewPhoneHasher(),
		loginStore: verification.NewMemoryStore(c.Now),
		phoneStore: verification.NewMemoryStore(c.Now),
		notifier:   &recordingNotifier{},
		tokens:     newFakeTokens(),
		index:      &fakeIndex{},
		audit:      &recordingAudit{},
		clock:      c,
	}
	h.factory = NewServiceFactory(Dependencies{
		Users:      h.users,
		Normalizer: phone.NewE164Normalizer("US"),
		Hasher:     h.hasher,
		LoginCodes: verification.NewChecker(h.loginStore, verification.WithClock(c.Now)),
		PhoneCodes: verification.NewChecker(h.phoneStore, verification.WithClock(c.Now)),
		Usernames:  username.NewGenerator(username.DefaultMaxAttempts),
		Tokens:     h.tokens,
		TokenName:  "test-token",
		Notifier:   h.notifier,
		Bypass:     bypass.New(environment, magic),
		Index:      h.index,
		Audit:      h.audit,
		Clock:      c.Now,
	})
	return h
}

func (h *harness) key(normalized string) string {
	return h.hasher.Hash(normalized)
}
