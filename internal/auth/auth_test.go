package auth

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func TestTokenRoundTripCarriesSessionIdentity(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	org := "org-x"
	token, expires, err := tm.GenerateToken(&domain.User{ID: "u-1", Role: domain.RoleClient, OrganizationID: &org})
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, domain.RoleClient, claims.Role)
	require.NotNil(t, claims.OrganizationID)
	assert.Equal(t, "org-x", *claims.OrganizationID)
}

func TestParseTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	issuer := NewTokenManager("secret", 1)
	token, _, err := issuer.GenerateToken(&domain.User{ID: "u-1", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = NewTokenManager("other", 1).ParseToken(token)
	assert.Error(t, err)

	late := NewTokenManager("secret", 1)
	late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = late.ParseToken(token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("changeme", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "changeme"))
	assert.Error(t, ComparePassword(hash, "wrong"))
	assert.Error(t, ComparePassword("", "changeme"))

	_, err = HashPassword(strings.Repeat("x", 73), 4)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidArgument))
}

func TestLoginLimiterPerIP(t *testing.T) {
	limiter := NewLoginLimiter(1, 2)
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
}

type fakeUsers map[string]*domain.User

func (f fakeUsers) User(id string) (*domain.User, error) {
	if user, ok := f[id]; ok {
		return user, nil
	}
	return nil, apperrors.NewNotFound("user", nil)
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	deletedAt := time.Now()
	users := fakeUsers{
		"active": {ID: "active", Role: domain.RoleSupportStaff},
		"gone":   {ID: "gone", Role: domain.RoleSupportStaff, DeletedAt: &deletedAt},
	}
	mw := NewAuthMiddleware(tm, users)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(apperrors.ToDomainError(err).HTTPStatus).SendString(err.Error())
		},
	})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return err
		}
		return c.SendString(user.ID)
	})

	call := func(header string) int {
		req := httptest.NewRequest("GET", "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	good, _, err := tm.GenerateToken(users["active"])
	require.NoError(t, err)
	retired, _, err := tm.GenerateToken(users["gone"])
	require.NoError(t, err)
	unknown, _, err := tm.GenerateToken(&domain.User{ID: "ghost"})
	require.NoError(t, err)

	assert.Equal(t, 200, call("Bearer "+good))
	assert.Equal(t, 401, call(""))
	assert.Equal(t, 401, call("Token "+good))
	assert.Equal(t, 401, call("Bearer "+retired))
	assert.Equal(t, 401, call("Bearer "+unknown))
	assert.Equal(t, 401, call("Bearer garbage"))
}
