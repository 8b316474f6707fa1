package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/circulation-backend/internal/services"
)

func Test_StatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrInvalidRequest, http.StatusBadRequest},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrAccountNotApproved, http.StatusForbidden},
		{services.ErrBookNotFound, http.StatusNotFound},
		{services.ErrNoCopiesAvailable, http.StatusConflict},
		{services.ErrLoanAlreadyReturned.With("x"), http.StatusConflict},
		{services.ErrAlreadyDecided, http.StatusConflict},
		{services.ErrStoreBusy, http.StatusServiceUnavailable},
		{services.ErrConsistency, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusFor(c.err), c.err.Error())
	}
}

func Test_WriteServiceError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, services.ErrNoCopiesAvailable)
	require.Equal(t, http.StatusConflict, rec.Code)

	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no_copies_available", body.Code)
	assert.Equal(t, "no copies of this book are available", body.Error)

	rec = httptest.NewRecorder()
	WriteServiceError(rec, errors.New("db exploded"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "exploded")
}

func Test_Page(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/x?limit=10&offset=-1", nil)
	p := Page(r)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 0, p.Offset)
}
