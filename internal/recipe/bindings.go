package recipe

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
)

const secretKeyBytes = 64

// Bindings builds the placeholder values for a run. Built-in names are
// app_name, root and secret_key. Recipe vars come next and overrides last.
func Bindings(r *Recipe, root, appName string, overrides map[string]string) (map[string]string, error) {
	if appName == "" {
		appName = filepath.Base(root)
	}
	secret, err := SecretKey()
	if err != nil {
		return nil, err
	}

	b := map[string]string{
		"app_name":   appName,
		"root":       root,
		"secret_key": secret,
	}
	for k, v := range r.Vars {
		b[k] = v
	}
	for k, v := range overrides {
		b[k] = v
	}
	return b, nil
}

// SecretKey returns 64 random bytes as hex, the size Rails expects for SECRET_KEY_BASE.
func SecretKey() (string, error) {
	buf := make([]byte, secretKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate secret key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
