package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbo360/crewupload/pkg/config"
)

// createTestJWT creates a test JWT with the given claims
func createTestJWT(claims map[string]any) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

	claimsJSON, _ := json.Marshal(claims)
	payload := base64.RawURLEncoding.EncodeToString(claimsJSON)

	// Fake signature (not verified anyway)
	signature := base64.RawURLEncoding.EncodeToString([]byte("fake-signature"))

	return header + "." + payload + "." + signature
}

func TestParseClaims(t *testing.T) {
	t.Run("returns all claims", func(t *testing.T) {
		token := createTestJWT(map[string]any{
			"sub": "crew@example.com",
			"exp": float64(1234567890),
		})

		claims, err := ParseClaims(token)

		require.NoError(t, err)
		assert.Equal(t, "crew@example.com", claims["sub"])
		assert.Equal(t, float64(1234567890), claims["exp"])
	})

	t.Run("returns error for invalid token format", func(t *testing.T) {
		tcs := []struct {
			name  string
			token string
		}{
			{name: "no dots", token: "invalid-token"},
			{name: "one dot", token: "header.payload"},
			{name: "invalid base64 payload", token: "header.!!!invalid!!!.signature"},
		}

		for _, tc := range tcs {
			t.Run(tc.name, func(t *testing.T) {
				claims, err := ParseClaims(tc.token)

				require.Error(t, err)
				assert.Nil(t, claims)
			})
		}
	})
}

func TestProvider_Token(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tcs := []struct {
		name        string
		token       string
		expectedErr error
		expectErr   bool
	}{
		{
			name:  "valid jwt",
			token: createTestJWT(map[string]any{"exp": float64(now.Add(time.Hour).Unix())}),
		},
		{
			name:  "jwt without exp",
			token: createTestJWT(map[string]any{"sub": "crew"}),
		},
		{
			name:  "opaque token",
			token: "b1946ac92492d2347c6235b4d2611184",
		},
		{
			name:        "expired jwt",
			token:       createTestJWT(map[string]any{"exp": float64(now.Add(-time.Minute).Unix())}),
			expectedErr: ErrSessionExpired,
		},
		{
			name:        "no token",
			token:       "",
			expectedErr: ErrNotLoggedIn,
		},
		{
			name:      "malformed jwt",
			token:     "a.!!!.c",
			expectErr: true,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProvider(&config.Config{Token: tc.token}, nil)
			p.now = func() time.Time { return now }

			token, err := p.Token(context.Background())

			switch {
			case tc.expectedErr != nil:
				require.ErrorIs(t, err, tc.expectedErr)
				assert.Empty(t, token)
			case tc.expectErr:
				require.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tc.token, token)
			}
		})
	}
}

func TestProvider_Invalidate(t *testing.T) {
	t.Run("clears the token and session once", func(t *testing.T) {
		cfg := &config.Config{
			Token:   "opaque",
			Session: &config.Session{ID: "s-1", ProjectName: "Ad", CrewName: "A"},
		}
		saves := 0
		p := NewProvider(cfg, func(*config.Config) error {
			saves++
			return nil
		})

		p.Invalidate()
		p.Invalidate()

		assert.Equal(t, 1, saves)
		assert.Empty(t, cfg.Token)
		assert.Nil(t, cfg.Session)
		assert.True(t, p.Invalidated())

		_, err := p.Token(context.Background())
		require.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("persist failure is not fatal", func(t *testing.T) {
		p := NewProvider(&config.Config{Token: "opaque"}, func(*config.Config) error {
			return errors.New("disk full")
		})

		assert.NotPanics(t, p.Invalidate)
		assert.True(t, p.Invalidated())
	})

	t.Run("set restores a usable token", func(t *testing.T) {
		p := NewProvider(&config.Config{Token: "old"}, nil)
		p.Invalidate()

		require.NoError(t, p.Set("new"))

		token, err := p.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "new", token)
		assert.False(t, p.Invalidated())
	})
}
