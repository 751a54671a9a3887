package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"example.com/backstage/services/taxonomy/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", errors.Wrap(services.ErrValidation, "event name is required"), http.StatusBadRequest},
		{"not found", errors.Wrap(services.ErrNotFound, "event abc"), http.StatusNotFound},
		{"type conflict", errors.Wrap(services.ErrTypeConflict, "property user_id"), http.StatusConflict},
		{"duplicate name", errors.Wrap(services.ErrDuplicateName, "property user_id"), http.StatusConflict},
		{"duplicate association", errors.Wrap(services.ErrDuplicateAssociation, "user_id as event"), http.StatusConflict},
		{"unknown", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)

			respondError(c, tc.err)

			require.Equal(t, tc.status, recorder.Code)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	respondError(c, errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"))

	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	require.NotContains(t, recorder.Body.String(), "10.0.0.5")
}
