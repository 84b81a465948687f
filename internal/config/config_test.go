package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvWithDefault(t *testing.T) {
	testCases := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{
			name:         "should return env value when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "from_env",
			expected:     "from_env",
		},
		{
			name:         "should return default when env not set",
			key:          "MISSING_KEY",
			defaultValue: "default_value",
			envValue:     "",
			expected:     "default_value",
		},
		{
			name:         "should return empty string default",
			key:          "EMPTY_KEY",
			defaultValue: "",
			envValue:     "",
			expected:     "",
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			} else {
				os.Unsetenv(tt.key)
			}

			assert.Equal(t, tt.expected, GetEnvWithDefault(tt.key, tt.defaultValue))
		})
	}
}

func TestGetEnvAsType(t *testing.T) {
	t.Setenv("TYPED_INT", "42")
	t.Setenv("TYPED_BOOL", "false")
	t.Setenv("TYPED_DURATION", "90s")
	t.Setenv("TYPED_BAD_INT", "forty-two")

	assert.Equal(t, 42, GetEnvAsType("TYPED_INT", 1))
	assert.Equal(t, false, GetEnvAsType("TYPED_BOOL", true))
	assert.Equal(t, 90*time.Second, GetEnvAsType("TYPED_DURATION", time.Minute))
	assert.Equal(t, 7, GetEnvAsType("TYPED_BAD_INT", 7))
	assert.Equal(t, "fallback", GetEnvAsType("TYPED_MISSING", "fallback"))
}

func TestLoadConfig(t *testing.T) {
	cleanupTestEnv := func() {
		vars := []string{
			"APP_PORT", "APP_HOST", "LOG_LEVEL", "JWT_SECRET", "BASE_URL",
			"DOCUSIGN_ENVIRONMENT", "DOCUSIGN_OAUTH_BASE_URL", "DOCUSIGN_INTEGRATION_KEY",
			"DOCUSIGN_CLIENT_SECRET", "DOCUSIGN_ACCOUNT_ID", "DOCUSIGN_SCOPES", "STATE_STORE",
			"REDIS_ADDR", "TOKEN_REFRESH_MARGIN", "APP_ENV", "SIGNING_LINK_SECRET",
		}
		for _, v := range vars {
			os.Unsetenv(v)
		}
	}

	t.Run("successful config load with all env vars", func(t *testing.T) {
		cleanupTestEnv()
		defer cleanupTestEnv()
		t.Setenv("APP_PORT", "9000")
		t.Setenv("APP_HOST", "0.0.0.0")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("BASE_URL", "https://septic.example.com/")
		t.Setenv("DOCUSIGN_ENVIRONMENT", "production")
		t.Setenv("DOCUSIGN_INTEGRATION_KEY", "0f3c1b6e-aaaa-bbbb-cccc-1234567890ab")
		t.Setenv("DOCUSIGN_CLIENT_SECRET", "shh")
		t.Setenv("DOCUSIGN_ACCOUNT_ID", "acct-1")
		t.Setenv("TOKEN_REFRESH_MARGIN", "10m")

		config, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 9000, config.Port)
		assert.Equal(t, "0.0.0.0", config.Host)
		assert.Equal(t, "debug", config.LogLevel)
		assert.Equal(t, "https://septic.example.com", config.BaseURL)
		assert.Equal(t, "https://septic.example.com/api/docusign/callback", config.RedirectURL())
		assert.Equal(t, EnvironmentProduction, config.DocuSign.Environment)
		assert.Equal(t, "https://account.docusign.com", config.DocuSign.OAuthBaseURL)
		assert.Equal(t, 10*time.Minute, config.DocuSign.RefreshMargin)
		assert.Equal(t, []string{"signature", "extended"}, config.DocuSign.Scopes)
	})

	t.Run("should fail with invalid port", func(t *testing.T) {
		cleanupTestEnv()
		defer cleanupTestEnv()
		t.Setenv("APP_PORT", "not_a_number")

		config, err := LoadConfig()
		assert.Error(t, err)
		assert.Nil(t, config)
	})

	t.Run("should fail with unknown docusign environment", func(t *testing.T) {
		cleanupTestEnv()
		defer cleanupTestEnv()
		t.Setenv("DOCUSIGN_ENVIRONMENT", "staging")

		config, err := LoadConfig()
		assert.Error(t, err)
		assert.Nil(t, config)
	})

	t.Run("should require redis address for redis state store", func(t *testing.T) {
		cleanupTestEnv()
		defer cleanupTestEnv()
		t.Setenv("STATE_STORE", "redis")

		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("should reject default secrets outside development", func(t *testing.T) {
		tests := []struct {
			name       string
			jwtSecret  string
			linkSecret string
		}{
			{"both missing", "", ""},
			{"default jwt secret", "secret", "a-real-link-secret"},
			{"default signing link secret", "a-real-jwt-secret", "signing-link-secret"},
			{"blank signing link secret", "a-real-jwt-secret", "   "},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cleanupTestEnv()
				defer cleanupTestEnv()
				t.Setenv("APP_ENV", "production")
				if tt.jwtSecret != "" {
					t.Setenv("JWT_SECRET", tt.jwtSecret)
				}
				if tt.linkSecret != "" {
					t.Setenv("SIGNING_LINK_SECRET", tt.linkSecret)
				}

				config, err := LoadConfig()
				assert.Error(t, err)
				assert.Nil(t, config)
			})
		}
	})

	t.Run("should accept configured secrets outside development", func(t *testing.T) {
		cleanupTestEnv()
		defer cleanupTestEnv()
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "a-real-jwt-secret")
		t.Setenv("SIGNING_LINK_SECRET", "a-real-link-secret")

		config, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "production", config.AppEnv)
		assert.Equal(t, "a-real-link-secret", config.Signing.LinkSecret)
	})

	t.Run("should use defaults when optional env vars not set", func(t *testing.T) {
		cleanupTestEnv()
		defer cleanupTestEnv()

		config, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 8080, config.Port)
		assert.Equal(t, "localhost", config.Host)
		assert.Equal(t, "info", config.LogLevel)
		assert.Equal(t, EnvironmentSandbox, config.DocuSign.Environment)
		assert.Equal(t, "https://account-d.docusign.com", config.DocuSign.OAuthBaseURL)
		assert.Equal(t, 30*time.Second, config.DocuSign.Timeout)
		assert.Equal(t, 5*time.Minute, config.DocuSign.RefreshMargin)
		assert.Equal(t, 365*24*time.Hour, config.Signing.LinkTTL)
		assert.True(t, config.Signing.SuppressProviderEmail)
		assert.Equal(t, StateStoreMemory, config.StateStore)
		assert.False(t, config.SMTP.Enabled())
	})
}

func TestConfigStringMasksSecrets(t *testing.T) {
	c := &Config{
		DBPassword: "db-pass",
		JWTSecret:  "jwt-secret",
		DocuSign: DocuSignConfig{
			IntegrationKey: "0f3c1b6e-aaaa-bbbb-cccc-1234567890ab",
			ClientSecret:   "client-secret",
		},
	}

	s := c.String()
	assert.NotContains(t, s, "db-pass")
	assert.NotContains(t, s, "jwt-secret")
	assert.NotContains(t, s, "client-secret")
	assert.NotContains(t, s, "1234567890ab")
	assert.Contains(t, s, "0f3c1b6e...")
}

func BenchmarkGetEnvWithDefault(b *testing.B) {
	os.Setenv("BENCH_KEY", "test_value")
	defer os.Unsetenv("BENCH_KEY")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GetEnvWithDefault("BENCH_KEY", "default")
	}
}
