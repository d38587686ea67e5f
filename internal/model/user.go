package model

import (
	"strings"
	"time"
)

const (
	RoleStudent    = "STUDENT"
	RoleInstructor = "INSTRUCTOR"
	RoleAdmin      = "ADMIN"
)

// User is the stored representation. PasswordHash is empty for accounts that
// were created without a password; such accounts cannot log in.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserView is the public representation of a user. It never carries the
// password hash.
type UserView struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) View() UserView {
	return UserView{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// UsernameFollowsEmail reports whether the username was defaulted from the
// email. Chosen usernames never contain '@', so only a defaulted one can
// equal an email.
func (u User) UsernameFollowsEmail() bool {
	return strings.EqualFold(u.Username, u.Email)
}

// UserInput is the body of POST /users and PUT /users/{id}.
type UserInput struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Username  string `json:"username" validate:"omitempty,max=100,excludes=@"`
	Role      string `json:"role" validate:"required,oneof=STUDENT INSTRUCTOR ADMIN"`
	Password  string `json:"password" validate:"omitempty,max=72"`
}

// Normalize trims every field and upper-cases the role. The password is left
// untouched.
func (in UserInput) Normalize() UserInput {
	return UserInput{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Username:  strings.TrimSpace(in.Username),
		Role:      strings.ToUpper(strings.TrimSpace(in.Role)),
		Password:  in.Password,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// TokenClaims is what a verified credential token asserts.
type TokenClaims struct {
	Subject   string
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
