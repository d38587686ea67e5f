package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"user-service/internal/model"
)

// MemoryUserRepository keeps users in process memory. It is used when no
// DATABASE_URL is configured and by tests. The mutex makes every operation
// atomic, which gives the same uniqueness guarantees as the database indexes.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byID       map[string]model.User
	byEmail    map[string]string
	byUsername map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:       map[string]model.User{},
		byEmail:    map[string]string{},
		byUsername: map[string]string{},
	}
}

func foldKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func (r *MemoryUserRepository) Create(_ context.Context, u model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[foldKey(u.Email)]; exists {
		return model.User{}, model.ErrDuplicateEmail
	}
	if _, exists := r.byUsername[foldKey(u.Username)]; exists {
		if u.UsernameFollowsEmail() {
			return model.User{}, model.ErrDuplicateEmail
		}
		return model.User{}, model.ErrDuplicateUsername
	}

	r.byID[u.ID] = u
	r.byEmail[foldKey(u.Email)] = u.ID
	r.byUsername[foldKey(u.Username)] = u.ID
	return u, nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, exists := r.byID[id]
	if !exists {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byUsername[foldKey(username)]
	if !exists {
		return model.User{}, model.ErrUserNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryUserRepository) List(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]model.User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, u)
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, u model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.byID[u.ID]
	if !exists {
		return model.User{}, model.ErrUserNotFound
	}

	if u.Username == "" {
		u.Username = current.Username
		if current.UsernameFollowsEmail() {
			u.Username = u.Email
		}
	}
	if u.PasswordHash == "" {
		u.PasswordHash = current.PasswordHash
	}
	u.CreatedAt = current.CreatedAt

	if owner, taken := r.byEmail[foldKey(u.Email)]; taken && owner != u.ID {
		return model.User{}, model.ErrDuplicateEmail
	}
	if owner, taken := r.byUsername[foldKey(u.Username)]; taken && owner != u.ID {
		if u.UsernameFollowsEmail() {
			return model.User{}, model.ErrDuplicateEmail
		}
		return model.User{}, model.ErrDuplicateUsername
	}

	delete(r.byEmail, foldKey(current.Email))
	delete(r.byUsername, foldKey(current.Username))
	r.byID[u.ID] = u
	r.byEmail[foldKey(u.Email)] = u.ID
	r.byUsername[foldKey(u.Username)] = u.ID
	return u, nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.byID[id]
	if !exists {
		return model.ErrUserNotFound
	}

	delete(r.byID, id)
	delete(r.byEmail, foldKey(u.Email))
	delete(r.byUsername, foldKey(u.Username))
	return nil
}

func (r *MemoryUserRepository) Ping(context.Context) error {
	return nil
}
