// Package secrets resolves API keys from the environment or the OS keychain.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the app's secrets in the OS keychain.
const KeyringService = "jobfinder"

// Environment variables checked before the keychain, per credential.
var (
	ListingAPIEnv = []string{"JOBFINDER_LISTING_API_KEY", "HASDATA_API_KEY"}
	ScoringEnv    = []string{"JOBFINDER_SCORING_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY"}
)

var ErrNotFound = errors.New("secret not found")

// Lookup returns the first non-blank value among envKeys, then the keychain
// entry for account.
func Lookup(envKeys []string, account string) (string, error) {
	for _, k := range envKeys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v, nil
		}
	}

	if strings.TrimSpace(account) != "" {
		v, err := keyring.Get(KeyringService, account)
		switch {
		case err == nil && strings.TrimSpace(v) != "":
			return v, nil
		case err != nil && !errors.Is(err, keyring.ErrNotFound):
			return "", fmt.Errorf("keyring %s/%s: %w", KeyringService, account, err)
		}
	}

	return "", fmt.Errorf("%w: set one of %s or keychain account %q", ErrNotFound, strings.Join(envKeys, ", "), account)
}

func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}
