// Package gravatar builds avatar URLs for the contact email of an account.
package gravatar

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jon4hz/csoportal/internal/config"
)

const baseURL = "https://www.gravatar.com/avatar/"

var (
	defaultImages = []string{"404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank"}
	ratings       = []string{"g", "pg", "r", "x"}
)

// URL returns the avatar URL for email, or "" when gravatar is disabled or email is empty.
func URL(email string, cfg *config.GravatarConfig) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if cfg == nil || !cfg.Enabled || email == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(email))
	u := baseURL + hex.EncodeToString(sum[:])

	params := url.Values{}
	if cfg.DefaultImage != "" {
		params.Set("d", cfg.DefaultImage)
	}
	if cfg.Rating != "" {
		params.Set("r", cfg.Rating)
	}
	if cfg.Size > 0 {
		params.Set("s", strconv.Itoa(cfg.Size))
	}
	if len(params) == 0 {
		return u
	}
	return u + "?" + params.Encode()
}

// Validate checks the optional gravatar settings. Empty values are allowed.
func Validate(cfg *config.GravatarConfig) error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if cfg.DefaultImage != "" && !contains(defaultImages, cfg.DefaultImage) {
		return fmt.Errorf("invalid gravatar default image %q", cfg.DefaultImage)
	}
	if cfg.Rating != "" && !contains(ratings, cfg.Rating) {
		return fmt.Errorf("invalid gravatar rating %q", cfg.Rating)
	}
	if cfg.Size != 0 && (cfg.Size < 1 || cfg.Size > 2048) {
		return fmt.Errorf("gravatar size must be between 1 and 2048, got %d", cfg.Size)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
