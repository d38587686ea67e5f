package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"user-service/internal/model"
)

func TestBcryptHasherSaltsEachDigest(t *testing.T) {
	t.Parallel()

	hasher := NewBcryptHasher(bcrypt.MinCost)

	first, err := hasher.Hash("password")
	require.NoError(t, err)
	second, err := hasher.Hash("password")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.NotContains(t, first, "password")
	require.True(t, hasher.Verify("password", first))
	require.True(t, hasher.Verify("password", second))
	require.False(t, hasher.Verify("Password", first))
	require.False(t, hasher.Verify("", first))
}

func TestBcryptHasherMalformedDigest(t *testing.T) {
	t.Parallel()

	hasher := NewBcryptHasher(bcrypt.MinCost)
	digest, err := hasher.Hash("password")
	require.NoError(t, err)

	cases := map[string]string{
		"empty":     "",
		"truncated": digest[:len(digest)/2],
		"garbage":   "not-a-bcrypt-digest",
		"bad cost":  strings.Replace(digest, "$04$", "$99$", 1),
	}

	for name, malformed := range cases {
		t.Run(name, func(t *testing.T) {
			require.NotPanics(t, func() {
				require.False(t, hasher.Verify("password", malformed))
			})
		})
	}
}

func TestBcryptHasherRejectsLongPassword(t *testing.T) {
	t.Parallel()

	hasher := NewBcryptHasher(bcrypt.MinCost)
	_, err := hasher.Hash(strings.Repeat("x", 73))
	require.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestBcryptHasherCostFallback(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultBcryptCost, NewBcryptHasher(0).cost)
	require.Equal(t, DefaultBcryptCost, NewBcryptHasher(bcrypt.MaxCost+1).cost)
	require.Equal(t, bcrypt.MinCost, NewBcryptHasher(bcrypt.MinCost).cost)
}
