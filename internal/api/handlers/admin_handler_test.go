package handlers

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReindexer struct {
	calls   int
	indexed int
}

func (f *fakeReindexer) Reindex(ctx context.Context) (int, error) {
	f.calls++
	return f.indexed, nil
}

func TestReindexDrivesIndexWritePath(t *testing.T) {
	reindexer := &fakeReindexer{indexed: 42}
	app := fiber.New()
	app.Post("/admin/reindex", NewAdminHandler(reindexer).HandleReindex)

	resp, err := app.Test(httptest.NewRequest("POST", "/admin/reindex", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, reindexer.calls)
}

func TestReindexWithIndexDisabled(t *testing.T) {
	app := fiber.New()
	app.Post("/admin/reindex", NewAdminHandler(nil).HandleReindex)

	resp, err := app.Test(httptest.NewRequest("POST", "/admin/reindex", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
