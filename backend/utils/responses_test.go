package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy/backend/access"
	"academy/backend/apperr"
)

func TestHandleErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		principal access.Principal
		status    int
	}{
		{"anonymous denied", apperr.ErrUnauthorized, access.Anonymous(), fiber.StatusUnauthorized},
		{"user denied", apperr.ErrUnauthorized, access.User(3, access.RoleCustomer), fiber.StatusForbidden},
		{"not found", apperr.NotFound("course"), access.Anonymous(), fiber.StatusNotFound},
		{"validation", apperr.Invalid("slug", "already in use"), access.Anonymous(), fiber.StatusUnprocessableEntity},
		{"duplicate", fmt.Errorf("enroll: %w", apperr.ErrDuplicateEnrollment), access.Anonymous(), fiber.StatusConflict},
		{"sequence", apperr.ErrSequenceViolation, access.Anonymous(), fiber.StatusConflict},
		{"transition", apperr.ErrInvalidTransition, access.Anonymous(), fiber.StatusConflict},
		{"fiber error", fiber.NewError(fiber.StatusBadRequest, "bad id"), access.Anonymous(), fiber.StatusBadRequest},
		{"unexpected", errors.New("connection reset"), access.Anonymous(), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				SetPrincipal(c, tc.principal)
				return HandleError(c, tc.err)
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
		})
	}
}

func TestHandleErrorValidationDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return HandleError(c, apperr.Invalid("slug", "already in use"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]interface{}{"slug": "already in use"}, body["details"])
}
