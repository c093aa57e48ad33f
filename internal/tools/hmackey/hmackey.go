package hmackey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// Config holds configuration for HMAC key generation.
type Config struct {
	Bytes int
	// KeyID, when set, emits the rotation-set form keyed by this id instead
	// of the single-key variable.
	KeyID string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (default: 32)")
	fs.StringVar(&cfg.KeyID, "key-id", cfg.KeyID, "emit a keyed rotation entry under this id")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if strings.ContainsAny(cfg.KeyID, "=,") {
		return Config{}, errors.New("key-id must not contain '=' or ','")
	}
	return cfg, nil
}

// Run generates the key and writes it to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes <= 0 {
		return errors.New("bytes must be greater than zero")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	encoded := hex.EncodeToString(buf)

	if cfg.KeyID != "" {
		if _, err := fmt.Fprintf(out, "MODL_PANEL_MODERATION_EVENT_HMAC_KEYS=%s=%s\n", cfg.KeyID, encoded); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "MODL_PANEL_MODERATION_EVENT_HMAC_KEY_ID=%s\n", cfg.KeyID)
		return err
	}
	_, err := fmt.Fprintf(out, "MODL_PANEL_MODERATION_EVENT_HMAC_KEY=%s\n", encoded)
	return err
}
