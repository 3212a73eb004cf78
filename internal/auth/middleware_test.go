package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/movie-comments/pkg/util/errorutil"
)

func newProtectedApp(tm *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Message)
		},
	})
	app.Get("/me", NewMiddleware(tm).Handle, func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		return c.SendString(identity.UserID + "|" + identity.Username)
	})
	return app
}

func TestMiddleware(t *testing.T) {
	tm := newTestManager()
	token, _, err := tm.GenerateToken(testUser())
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"tampered", "Bearer " + token + "x", http.StatusUnauthorized},
	}

	app := newProtectedApp(tm)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestIdentityFromContext_Absent(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		_, ok := IdentityFromContext(c)
		assert.False(t, ok)
		return c.SendStatus(http.StatusNoContent)
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
