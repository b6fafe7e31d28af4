package repos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecretRepoGetReturnsFalseForUnknownKey(t *testing.T) {
	repo := NewSecretRepo(newTestDB(t), testLogger(t))

	_, ok, err := repo.Get(t.Context(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSecretRepoUpsertThenGetRoundTrips(t *testing.T) {
	repo := NewSecretRepo(newTestDB(t), testLogger(t))

	require.NoError(t, repo.Upsert(t.Context(), "api-token", "first-value"))

	value, ok, err := repo.Get(t.Context(), "api-token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first-value", value)
}

func TestSecretRepoUpsertOverwritesAnExistingKey(t *testing.T) {
	repo := NewSecretRepo(newTestDB(t), testLogger(t))

	require.NoError(t, repo.Upsert(t.Context(), "api-token", "first-value"))
	require.NoError(t, repo.Upsert(t.Context(), "api-token", "second-value"))

	value, ok, err := repo.Get(t.Context(), "api-token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second-value", value)
}

func TestSecretRepoDeleteRemovesAKey(t *testing.T) {
	repo := NewSecretRepo(newTestDB(t), testLogger(t))

	require.NoError(t, repo.Upsert(t.Context(), "api-token", "value"))
	require.NoError(t, repo.Delete(t.Context(), "api-token"))

	_, ok, err := repo.Get(t.Context(), "api-token")
	require.NoError(t, err)
	require.False(t, ok)
}
