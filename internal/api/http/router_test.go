package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/token-auth-service/internal/api/http/handlers"
	"github.com/spec-kit/token-auth-service/internal/auth"
	"github.com/spec-kit/token-auth-service/internal/config"
	"github.com/spec-kit/token-auth-service/internal/domain"
	"github.com/spec-kit/token-auth-service/internal/events"
	"github.com/spec-kit/token-auth-service/internal/observability"
	"github.com/spec-kit/token-auth-service/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type staticDirectory map[string]*domain.Account

func (d staticDirectory) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	account, ok := d[username]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestApp(t *testing.T, dependencies map[string]handlers.Pinger) *fiber.App {
	t.Helper()
	hash, err := auth.HashPassword("admin", bcrypt.MinCost)
	require.NoError(t, err)

	directory := staticDirectory{
		"admin": {Username: "admin", PasswordHash: hash, Enabled: true, Privileges: domain.DataPrivileges},
		"writer": {Username: "writer", PasswordHash: hash, Enabled: true, Privileges: []string{domain.PrivilegeCreateData}},
	}

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	codec, err := auth.NewTokenCodec([]byte(testSecret))
	require.NoError(t, err)

	dispatcher := events.NewInMemoryDispatcher()
	service.NewAuditService(dispatcher, logger, metrics).RegisterHandlers()

	loginService, err := service.NewLoginService(config.AuthConfig{
		TokenValiditySeconds:   3600,
		BcryptCost:             bcrypt.MinCost,
		DependencyTimeoutMilli: 1000,
	}, service.LoginDependencies{
		Directory:  directory,
		Verifier:   auth.NewBcryptVerifier(),
		Codec:      codec,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	require.NoError(t, err)

	validator := auth.NewTokenValidator(codec, logger, metrics)
	converter := auth.NewRequestAuthenticationConverter(validator, directory, time.Second, logger, metrics)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("token-auth-service", "test", dependencies, metrics),
		Login:          handlers.NewLoginHandler(loginService),
		Persons:        handlers.NewPersonsHandler(service.NewPersonService(logger)),
		AuthMiddleware: auth.NewAuthMiddleware(converter),
	})
	return app
}

func send(t *testing.T, app *fiber.App, method, path, authorization, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	payload := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

func login(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	status, body := send(t, app, fiber.MethodPost, "/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, fiber.StatusOK, status)
	require.Equal(t, true, body["logged"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestLoginEndpoint(t *testing.T) {
	app := newTestApp(t, nil)

	token := login(t, app, "ADMIN", "admin")
	assert.Len(t, strings.Split(token, "."), 3)

	status, body := send(t, app, fiber.MethodPost, "/login", "", `{"username":"admin","password":"wrong"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["logged"])
	assert.Equal(t, "", body["token"])

	status, body = send(t, app, fiber.MethodPost, "/login", "", `{"username":"admin"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	errBody, _ := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_FAILED", errBody["code"])
}

func TestProtectedRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	token := login(t, app, "admin", "admin")

	status, body := send(t, app, fiber.MethodGet, "/me", "Bearer "+token, "")
	require.Equal(t, fiber.StatusOK, status)
	data, _ := body["data"].(map[string]any)
	assert.Equal(t, "admin", data["subject"])

	status, body = send(t, app, fiber.MethodGet, "/rest/persons", "Bearer "+token, "")
	require.Equal(t, fiber.StatusOK, status)
	persons, _ := body["data"].([]any)
	assert.Len(t, persons, 1)

	status, _ = send(t, app, fiber.MethodGet, "/nowhere", "Bearer "+token, "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestProtectedRoutes_Rejections(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := send(t, app, fiber.MethodGet, "/me", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	errBody, _ := body["error"].(map[string]any)
	assert.Equal(t, "UNAUTHORIZED", errBody["code"])

	status, _ = send(t, app, fiber.MethodGet, "/me", "Basic abc123", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = send(t, app, fiber.MethodGet, "/me", "Bearer invalid.token.string", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = send(t, app, fiber.MethodGet, "/me", "Bearer", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	errBody, _ = body["error"].(map[string]any)
	assert.Equal(t, "INVALID_AUTHORIZATION_HEADER", errBody["code"])

	writer := login(t, app, "writer", "admin")
	status, _ = send(t, app, fiber.MethodGet, "/rest/persons", "Bearer "+writer, "")
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestHealthRoutes(t *testing.T) {
	healthy := newTestApp(t, map[string]handlers.Pinger{
		"postgres": pingerFunc(func(context.Context) error { return nil }),
	})
	status, body := send(t, healthy, fiber.MethodGet, "/health/live", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = send(t, healthy, fiber.MethodGet, "/health/ready", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	login(t, healthy, "admin", "admin")
	status, body = send(t, healthy, fiber.MethodGet, "/health/metrics", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	authCounts, _ := body["auth"].(map[string]any)
	assert.EqualValues(t, 1, authCounts[observability.AuthLoginSucceeded])

	unhealthy := newTestApp(t, map[string]handlers.Pinger{
		"redis": pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	status, _ = send(t, unhealthy, fiber.MethodGet, "/health/ready", "", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
}
