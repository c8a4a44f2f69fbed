package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"brew-planner/internal/core/domain"
	"brew-planner/internal/core/units"
	"brew-planner/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	_, unitErr := units.Normalize(1, "l", units.Mass)
	_, negErr := units.Normalize(-1, "kg", units.Mass)

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", common.NewValidationError("bad"), http.StatusBadRequest, common.ErrCodeInvalidRequest},
		{"not found", common.NewNotFoundError("lot", "L1", ""), http.StatusNotFound, common.ErrCodeNotFound},
		{"incompatible unit", fmt.Errorf("lot L1: %w", unitErr), http.StatusUnprocessableEntity, "INCOMPATIBLE_UNIT"},
		{"negative quantity", negErr, http.StatusUnprocessableEntity, common.ErrCodeUnprocessable},
		{"insufficient", fmt.Errorf("lot L1: %w", domain.ErrInsufficientQuantity), http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"conflict", common.ErrConflict.Wrap(errors.New("dup")), http.StatusConflict, common.ErrCodeConflict},
		{"unavailable", common.ErrServiceUnavailable.Wrap(errors.New("db down")), http.StatusServiceUnavailable, common.ErrCodeServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, common.ErrCodeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			WriteError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var resp common.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Code)
			assert.True(t, c.IsAborted())
		})
	}
}

func TestParseAsOf(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		query   string
		want    time.Time
		wantErr bool
	}{
		{"", now, false},
		{"?as_of=2026-04-01", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), false},
		{"?as_of=2026-04-01T12:00:00Z", time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC), false},
		{"?as_of=tomorrow", time.Time{}, true},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tc.query, nil)

		got, err := ParseAsOf(c, now)
		if tc.wantErr {
			assert.True(t, common.IsValidationError(err), tc.query)
			continue
		}
		require.NoError(t, err)
		assert.True(t, tc.want.Equal(got), tc.query)
	}
}

func TestQueryHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?abv=5.5&only=true&days=7&bad=x", nil)

	abv, err := QueryFloat(c, "abv")
	require.NoError(t, err)
	assert.Equal(t, 5.5, *abv)

	missing, err := QueryFloat(c, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	only, err := QueryBool(c, "only")
	require.NoError(t, err)
	assert.True(t, only)

	days, err := QueryInt(c, "days")
	require.NoError(t, err)
	assert.Equal(t, 7, days)

	_, err = QueryInt(c, "bad")
	assert.Error(t, err)
	_, err = QueryBool(c, "bad")
	assert.Error(t, err)
	_, err = QueryFloat(c, "bad")
	assert.Error(t, err)
}
