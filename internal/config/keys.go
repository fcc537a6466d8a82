package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmcleod/fitx/internal/util"
)

// LoadWrappingKey returns the configured wrapping key, or loads the key
// file under data_dir, creating it on first use.
func (c *Config) LoadWrappingKey() ([]byte, error) {
	if c.WrappingKey != "" {
		return util.DecodeKeyHex(c.WrappingKey)
	}
	return LoadOrCreateKey(c.WrappingKeyPath())
}

// LoadOrCreateKey reads a hex-encoded AES key from path. If the file does
// not exist a new key is generated and written with owner-only
// permissions.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, err := util.DecodeKeyHex(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("reading key file %s: %w", path, err)
		}
		return key, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	key, err := util.NewAESKey()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		// Lost a race with another process; use its key.
		return LoadOrCreateKey(path)
	}
	if err != nil {
		return nil, fmt.Errorf("creating key file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(util.HexEncode(key) + "\n"); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	return key, nil
}
