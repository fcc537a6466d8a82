package authserver

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/fitx/identity"
	"github.com/jmcleod/fitx/internal/util"
)

type userRecord struct {
	User
	Password util.PasswordHash
}

// userStore keeps accounts in memory, keyed by normalized email.
type userStore struct {
	mu      sync.RWMutex
	byEmail map[string]*userRecord
	byID    map[string]*userRecord
	params  util.Argon2idParams
}

func newUserStore(params util.Argon2idParams) *userStore {
	return &userStore{
		byEmail: make(map[string]*userRecord),
		byID:    make(map[string]*userRecord),
		params:  params,
	}
}

// create hashes the password and stores a new account.
func (us *userStore) create(u User, password string) (User, error) {
	u.Email = identity.NormalizeEmail(u.Email)

	us.mu.RLock()
	_, exists := us.byEmail[u.Email]
	us.mu.RUnlock()
	if exists {
		return User{}, ErrEmailTaken
	}

	hash, err := util.HashPassword(password, us.params)
	if err != nil {
		return User{}, err
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	// Re-check under the write lock; hashing ran unlocked.
	if _, exists := us.byEmail[u.Email]; exists {
		return User{}, ErrEmailTaken
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	rec := &userRecord{User: u, Password: hash}
	us.byEmail[u.Email] = rec
	us.byID[u.ID] = rec
	return u, nil
}

// authenticate returns the account for email if password matches.
func (us *userStore) authenticate(email, password string) (User, error) {
	us.mu.RLock()
	rec, ok := us.byEmail[identity.NormalizeEmail(email)]
	us.mu.RUnlock()
	if !ok || !util.VerifyPassword(password, rec.Password) {
		return User{}, ErrInvalidCredentials
	}
	return rec.User, nil
}

func (us *userStore) get(id string) (User, bool) {
	us.mu.RLock()
	defer us.mu.RUnlock()
	rec, ok := us.byID[id]
	if !ok {
		return User{}, false
	}
	return rec.User, true
}

// list returns all accounts ordered by email.
func (us *userStore) list() []User {
	us.mu.RLock()
	out := make([]User, 0, len(us.byID))
	for _, rec := range us.byID {
		out = append(out, rec.User)
	}
	us.mu.RUnlock()
	slices.SortFunc(out, func(a, b User) int { return strings.Compare(a.Email, b.Email) })
	return out
}
