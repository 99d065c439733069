package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mvdveer/fediviz/internal/domain"
)

func TestCheck(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("opensesame"), bcrypt.MinCost)
	require.NoError(t, err)

	a := New(string(hash))

	require.NoError(t, a.Check("opensesame"))
	require.ErrorIs(t, a.Check("wrong"), domain.ErrForbidden)
	require.ErrorIs(t, a.Check(""), domain.ErrForbidden)
}

func TestCheckWithoutConfiguredHash(t *testing.T) {
	a := New("")

	// No configured hash must be indistinguishable from a wrong secret.
	require.ErrorIs(t, a.Check("anything"), domain.ErrForbidden)
	require.ErrorIs(t, a.Check(""), domain.ErrForbidden)
}
