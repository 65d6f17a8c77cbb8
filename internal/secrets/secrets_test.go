package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestLookupPrefersEnvironment(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, Set("hasdata", "from-keychain"))

	t.Setenv("HASDATA_API_KEY", "from-env")
	v, err := Lookup(ListingAPIEnv, "hasdata")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestLookupFallsBackToKeychain(t *testing.T) {
	keyring.MockInit()
	for _, k := range ScoringEnv {
		t.Setenv(k, "")
	}
	require.NoError(t, Set("scoring", "kc-secret"))

	v, err := Lookup(ScoringEnv, "scoring")
	require.NoError(t, err)
	assert.Equal(t, "kc-secret", v)

	require.NoError(t, Delete("scoring"))
	_, err = Lookup(ScoringEnv, "scoring")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupWithoutAccount(t *testing.T) {
	keyring.MockInit()
	_, err := Lookup([]string{"JOBFINDER_TEST_UNSET_KEY"}, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetRejectsBlank(t *testing.T) {
	keyring.MockInit()
	assert.Error(t, Set("", "x"))
	assert.Error(t, Set("acct", "  "))
	assert.Error(t, Delete(""))
}
