package auth

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"
)

const (
	keyringService = "georisk"

	envKeyPrefix = "GEORISK_API_KEY_"

	keyFileMode = 0600
)

// ErrNoKey indicates no API key is configured for the source.
// Sources that work unauthenticated treat this as "proceed without one".
var ErrNoKey = errors.New("no API key configured")

// SaveKey stores the API key for a source in the OS keychain, falling
// back to a file under dir when the keychain is unavailable.
func SaveKey(dir, source, key string) error {
	if source == "" {
		return errors.New("source is required")
	}
	if key == "" {
		return errors.New("key is required")
	}

	if err := keyring.Set(keyringService, keyringAccount(source), key); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "source", source, "error", err)
		return saveKeyFile(dir, source, key)
	}

	// Clean up legacy file if it exists
	os.Remove(keyFilePath(dir, source))

	return nil
}

// GetKey resolves the API key for a source: keychain first, then the
// GEORISK_API_KEY_<SOURCE> env var, then the key file. Returns ErrNoKey
// when none of them has it.
func GetKey(dir, source string) (string, error) {
	if source == "" {
		return "", errors.New("source is required")
	}

	key, err := keyring.Get(keyringService, keyringAccount(source))
	if err == nil && key != "" {
		return key, nil
	}

	if key = os.Getenv(EnvKeyName(source)); key != "" {
		return key, nil
	}

	key, err = getKeyFile(dir, source)
	if err != nil {
		return "", ErrNoKey
	}

	// Migrate to keychain
	if migrateErr := keyring.Set(keyringService, keyringAccount(source), key); migrateErr == nil {
		slog.Info("migrated API key from file to OS keychain", "source", source)
		os.Remove(keyFilePath(dir, source))
	}

	return key, nil
}

// DeleteKey removes the API key for a source from both the keychain and
// the fallback file.
func DeleteKey(dir, source string) error {
	if source == "" {
		return errors.New("source is required")
	}

	kerr := keyring.Delete(keyringService, keyringAccount(source))
	ferr := os.Remove(keyFilePath(dir, source))

	if kerr != nil && ferr != nil {
		return ErrNoKey
	}
	return nil
}

// EnvKeyName returns the env var consulted for a source's API key.
func EnvKeyName(source string) string {
	return envKeyPrefix + strings.ToUpper(strings.ReplaceAll(source, "-", "_"))
}

func keyringAccount(source string) string {
	return fmt.Sprintf("%s_api_key", strings.ToLower(source))
}

func keyFilePath(dir, source string) string {
	return path.Join(dir, keyringAccount(source))
}

func saveKeyFile(dir, source, key string) error {
	if err := os.WriteFile(keyFilePath(dir, source), []byte(key), keyFileMode); err != nil {
		return errors.Wrapf(err, "error writing key file for source: %s", source)
	}
	return nil
}

func getKeyFile(dir, source string) (string, error) {
	b, err := os.ReadFile(keyFilePath(dir, source))
	if err != nil {
		return "", errors.Wrapf(err, "error reading key file for source: %s", source)
	}

	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", ErrNoKey
	}
	return key, nil
}
