package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"user-service/internal/event"
	"user-service/internal/model"
)

// UserStore persists user records. Implementations enforce email and username
// uniqueness and report violations as model.ErrDuplicateEmail or
// model.ErrDuplicateUsername; missing records are model.ErrUserNotFound.
type UserStore interface {
	Create(ctx context.Context, user model.User) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	// Update replaces the mutable fields of an existing record in one atomic
	// step. An empty PasswordHash keeps the stored digest. An empty Username
	// keeps the stored one, except that a username defaulted from the email
	// moves to the new email.
	Update(ctx context.Context, user model.User) (model.User, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext string, digest string) bool
}

type UserService struct {
	store    UserStore
	hasher   PasswordHasher
	validate *validator.Validate
	events   event.Publisher
	now      func() time.Time
}

func NewUserService(store UserStore, hasher PasswordHasher) *UserService {
	return &UserService{
		store:    store,
		hasher:   hasher,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		events:   event.Discard{},
		now:      time.Now,
	}
}

// WithEvents publishes user lifecycle events to p.
func (s *UserService) WithEvents(p event.Publisher) *UserService {
	if p != nil {
		s.events = p
	}
	return s
}

func (s *UserService) CreateUser(ctx context.Context, input model.UserInput) (model.UserView, error) {
	input = input.Normalize()
	if err := s.validateInput(input); err != nil {
		return model.UserView{}, err
	}

	now := s.now().UTC()
	user := model.User{
		ID:        uuid.NewString(),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Username:  input.Username,
		Role:      input.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.Username == "" {
		user.Username = user.Email
	}

	if input.Password != "" {
		digest, err := s.hasher.Hash(input.Password)
		if err != nil {
			return model.UserView{}, err
		}
		user.PasswordHash = digest
	}

	created, err := s.store.Create(ctx, user)
	if err != nil {
		return model.UserView{}, err
	}

	s.events.Publish(event.New(event.TypeUserCreated, created.ID, map[string]string{
		"email":    created.Email,
		"username": created.Username,
		"role":     created.Role,
	}))
	return created.View(), nil
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (model.UserView, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		return model.UserView{}, err
	}
	return user.View(), nil
}

func (s *UserService) GetAllUsers(ctx context.Context) ([]model.UserView, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]model.UserView, 0, len(users))
	for _, user := range users {
		views = append(views, user.View())
	}
	return views, nil
}

// UpdateUser replaces first name, last name, email and role. Username and
// password are only changed when supplied; a username that was defaulted
// from the email keeps following it.
func (s *UserService) UpdateUser(ctx context.Context, id string, input model.UserInput) (model.UserView, error) {
	input = input.Normalize()
	if err := s.validateInput(input); err != nil {
		return model.UserView{}, err
	}

	user := model.User{
		ID:        id,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Username:  input.Username,
		Role:      input.Role,
		UpdatedAt: s.now().UTC(),
	}

	if input.Password != "" {
		digest, err := s.hasher.Hash(input.Password)
		if err != nil {
			return model.UserView{}, err
		}
		user.PasswordHash = digest
	}

	updated, err := s.store.Update(ctx, user)
	if err != nil {
		return model.UserView{}, err
	}

	payload := map[string]string{"email": updated.Email, "role": updated.Role}
	if input.Password != "" {
		payload["password_changed"] = "true"
	}
	s.events.Publish(event.New(event.TypeUserUpdated, updated.ID, payload))
	return updated.View(), nil
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.events.Publish(event.New(event.TypeUserDeleted, id, nil))
	return nil
}

// FindByUsername returns the stored record including its password hash. It is
// meant for the login flow and must not be rendered to clients.
func (s *UserService) FindByUsername(ctx context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return model.User{}, model.ErrUserNotFound
	}
	return s.store.FindByUsername(ctx, username)
}

func (s *UserService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *UserService) validateInput(input model.UserInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}

	out := &model.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[jsonFieldName(fe.Field())] = describe(fe)
	}
	return out
}

func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "excludes":
		return "must not contain " + fe.Param()
	default:
		return "is invalid"
	}
}
