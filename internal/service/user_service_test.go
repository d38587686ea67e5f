package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"user-service/internal/auth"
	"user-service/internal/model"
	"user-service/internal/repository"
)

func newTestUserService(t *testing.T) (*UserService, *repository.MemoryUserRepository) {
	t.Helper()

	repo := repository.NewMemoryUserRepository()
	return NewUserService(repo, auth.NewBcryptHasher(bcrypt.MinCost)), repo
}

func storedUsers(t *testing.T, repo *repository.MemoryUserRepository) int {
	t.Helper()

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	return len(users)
}

func johnDoe() model.UserInput {
	return model.UserInput{
		FirstName: "John",
		LastName:  "Doe",
		Email:     "john.doe@example.com",
		Role:      "STUDENT",
	}
}

func TestCreateThenGetReturnsSameView(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo := newTestUserService(t)

	input := johnDoe()
	input.Password = "password"
	created, err := svc.CreateUser(ctx, input)
	require.NoError(t, err)

	_, err = uuid.Parse(created.ID)
	require.NoError(t, err)
	require.Equal(t, "John", created.FirstName)
	require.Equal(t, "Doe", created.LastName)
	require.Equal(t, "john.doe@example.com", created.Email)
	require.Equal(t, "john.doe@example.com", created.Username)
	require.Equal(t, model.RoleStudent, created.Role)
	require.False(t, created.CreatedAt.IsZero())

	fetched, err := svc.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, fetched)

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.PasswordHash)
	require.NotEqual(t, "password", stored.PasswordHash)
}

func TestCreateUserNormalizesInput(t *testing.T) {
	t.Parallel()

	svc, _ := newTestUserService(t)
	created, err := svc.CreateUser(context.Background(), model.UserInput{
		FirstName: "  Ada ",
		LastName:  "Lovelace",
		Email:     " ada@example.com ",
		Username:  " ada ",
		Role:      "instructor",
	})
	require.NoError(t, err)
	require.Equal(t, "Ada", created.FirstName)
	require.Equal(t, "ada@example.com", created.Email)
	require.Equal(t, "ada", created.Username)
	require.Equal(t, model.RoleInstructor, created.Role)
}

func TestCreateUserValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*model.UserInput)
		field  string
	}{
		{"missing first name", func(in *model.UserInput) { in.FirstName = " " }, "firstName"},
		{"missing last name", func(in *model.UserInput) { in.LastName = "" }, "lastName"},
		{"missing email", func(in *model.UserInput) { in.Email = "" }, "email"},
		{"malformed email", func(in *model.UserInput) { in.Email = "john.doe" }, "email"},
		{"missing role", func(in *model.UserInput) { in.Role = "" }, "role"},
		{"unknown role", func(in *model.UserInput) { in.Role = "JANITOR" }, "role"},
		{"email-shaped username", func(in *model.UserInput) { in.Username = "john@example.com" }, "username"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, repo := newTestUserService(t)
			input := johnDoe()
			tc.mutate(&input)

			_, err := svc.CreateUser(context.Background(), input)
			require.ErrorIs(t, err, model.ErrInvalidInput)

			var validationErr *model.ValidationError
			require.True(t, errors.As(err, &validationErr))
			require.Contains(t, validationErr.Fields, tc.field)
			require.Zero(t, storedUsers(t, repo))
		})
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestUserService(t)

	_, err := svc.CreateUser(ctx, johnDoe())
	require.NoError(t, err)

	again := johnDoe()
	again.Email = "JOHN.DOE@example.com"
	_, err = svc.CreateUser(ctx, again)
	require.ErrorIs(t, err, model.ErrDuplicateEmail)
}

func TestGetAllUsersReturnsEveryUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestUserService(t)

	users, err := svc.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Empty(t, users)
	require.NotNil(t, users)

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		input := johnDoe()
		input.Email = email
		input.Password = "secret"
		_, err := svc.CreateUser(ctx, input)
		require.NoError(t, err)
	}

	users, err = svc.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
}

func TestUpdateUserReplacesFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo := newTestUserService(t)

	input := johnDoe()
	input.Username = "john.doe"
	input.Password = "password"
	created, err := svc.CreateUser(ctx, input)
	require.NoError(t, err)
	before, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)

	updated, err := svc.UpdateUser(ctx, created.ID, model.UserInput{
		FirstName: "Jonathan",
		LastName:  "Doe",
		Email:     "jonathan@example.com",
		Role:      "ADMIN",
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, "Jonathan", updated.FirstName)
	require.Equal(t, "jonathan@example.com", updated.Email)
	require.Equal(t, "john.doe", updated.Username)
	require.Equal(t, model.RoleAdmin, updated.Role)
	require.Equal(t, created.CreatedAt, updated.CreatedAt)

	after, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, before.PasswordHash, after.PasswordHash)

	withPassword := johnDoe()
	withPassword.Password = "new-password"
	_, err = svc.UpdateUser(ctx, created.ID, withPassword)
	require.NoError(t, err)

	rehashed, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotEqual(t, before.PasswordHash, rehashed.PasswordHash)
	require.True(t, auth.NewBcryptHasher(bcrypt.MinCost).Verify("new-password", rehashed.PasswordHash))
}

func TestUpdateUserRequiresAllReplacedFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestUserService(t)
	created, err := svc.CreateUser(ctx, johnDoe())
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, created.ID, model.UserInput{FirstName: "OnlyFirst"})
	require.ErrorIs(t, err, model.ErrInvalidInput)

	fetched, err := svc.GetUserByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "John", fetched.FirstName)
}

func TestUpdateMissingUserHasNoSideEffects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, repo := newTestUserService(t)
	_, err := svc.CreateUser(ctx, johnDoe())
	require.NoError(t, err)

	other := johnDoe()
	other.Email = "ghost@example.com"
	_, err = svc.UpdateUser(ctx, uuid.NewString(), other)
	require.ErrorIs(t, err, model.ErrUserNotFound)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "john.doe@example.com", users[0].Email)
}

func TestDeleteUserIsNotRepeatable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestUserService(t)
	created, err := svc.CreateUser(ctx, johnDoe())
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, created.ID))

	_, err = svc.GetUserByID(ctx, created.ID)
	require.ErrorIs(t, err, model.ErrUserNotFound)
	require.ErrorIs(t, svc.DeleteUser(ctx, created.ID), model.ErrUserNotFound)
}

func TestFindByUsernameReturnsHash(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _ := newTestUserService(t)

	input := johnDoe()
	input.Username = "john.doe"
	input.Password = "password"
	_, err := svc.CreateUser(ctx, input)
	require.NoError(t, err)

	user, err := svc.FindByUsername(ctx, "john.doe")
	require.NoError(t, err)
	require.True(t, user.HasPassword())

	_, err = svc.FindByUsername(ctx, "   ")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestStoreFailuresPropagate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &MockUserStore{}
	svc := NewUserService(store, auth.NewBcryptHasher(bcrypt.MinCost))

	storeErr := errors.Join(model.ErrStoreUnavailable, errors.New("connection refused"))
	store.On("FindByID", ctx, "some-id").Return(model.User{}, storeErr).Once()
	store.On("List", ctx).Return(nil, storeErr).Once()
	store.On("Create", ctx, mock.AnythingOfType("model.User")).Return(model.User{}, storeErr).Once()
	store.On("Ping", ctx).Return(storeErr).Once()

	_, err := svc.GetUserByID(ctx, "some-id")
	require.ErrorIs(t, err, model.ErrStoreUnavailable)

	_, err = svc.GetAllUsers(ctx)
	require.ErrorIs(t, err, model.ErrStoreUnavailable)

	_, err = svc.CreateUser(ctx, johnDoe())
	require.ErrorIs(t, err, model.ErrStoreUnavailable)

	require.ErrorIs(t, svc.Ping(ctx), model.ErrStoreUnavailable)

	store.AssertExpectations(t)
}

func TestCreateUserPassesHashedRecordToStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &MockUserStore{}
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	svc := NewUserService(store, hasher)

	var captured model.User
	store.On("Create", ctx, mock.AnythingOfType("model.User")).
		Run(func(args mock.Arguments) { captured = args.Get(1).(model.User) }).
		Return(model.User{ID: "stored-id", Email: "john.doe@example.com"}, nil).
		Once()

	input := johnDoe()
	input.Password = "password"
	view, err := svc.CreateUser(ctx, input)
	require.NoError(t, err)
	require.Equal(t, "stored-id", view.ID)

	require.Equal(t, captured.Email, captured.Username)
	require.True(t, hasher.Verify("password", captured.PasswordHash))
	require.Equal(t, captured.CreatedAt, captured.UpdatedAt)
	store.AssertExpectations(t)
}
