package gravatar

import (
	"testing"

	"github.com/jon4hz/csoportal/internal/config"
	"github.com/stretchr/testify/assert"
)

const testHash = "973dfe463ec85785f5f95af5ba3906eedb2d931c24e69824a89ea65dba4e813b"

func TestURL(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		config   *config.GravatarConfig
		expected string
	}{
		{
			name:     "disabled",
			email:    "test@example.com",
			config:   &config.GravatarConfig{Enabled: false},
			expected: "",
		},
		{
			name:     "nil config",
			email:    "test@example.com",
			expected: "",
		},
		{
			name:     "blank email",
			email:    "   ",
			config:   &config.GravatarConfig{Enabled: true},
			expected: "",
		},
		{
			name:     "no options",
			email:    "test@example.com",
			config:   &config.GravatarConfig{Enabled: true},
			expected: baseURL + testHash,
		},
		{
			name:  "all options and normalization",
			email: "  TEST@Example.com ",
			config: &config.GravatarConfig{
				Enabled:      true,
				DefaultImage: "identicon",
				Rating:       "pg",
				Size:         120,
			},
			expected: baseURL + testHash + "?d=identicon&r=pg&s=120",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, URL(tt.email, tt.config))
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.NoError(t, Validate(&config.GravatarConfig{Enabled: false, Rating: "nope"}))
	assert.NoError(t, Validate(&config.GravatarConfig{Enabled: true}))
	assert.NoError(t, Validate(&config.GravatarConfig{Enabled: true, DefaultImage: "mp", Rating: "g", Size: 2048}))

	assert.Error(t, Validate(&config.GravatarConfig{Enabled: true, DefaultImage: "MP"}))
	assert.Error(t, Validate(&config.GravatarConfig{Enabled: true, Rating: "nc17"}))
	assert.Error(t, Validate(&config.GravatarConfig{Enabled: true, Size: 4096}))
	assert.Error(t, Validate(&config.GravatarConfig{Enabled: true, Size: -1}))
}
