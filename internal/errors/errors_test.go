package errors_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hderrs "github.com/tartampluch/go-hebrew-dates/internal/errors"
)

func TestE(t *testing.T) {
	cause := errors.New("unknown calendar")

	err := hderrs.E(http.StatusNotFound, cause, hderrs.Detail{Field: "uuid", Error: "no such calendar"})

	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.ErrorIs(t, err, cause)
	assert.Len(t, err.Details, 1)
}

func TestE_Defaults(t *testing.T) {
	err := hderrs.E("boom")
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.EqualError(t, err.Err, "boom")
}

func TestError_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(hderrs.E(http.StatusBadRequest, "bad alarm", []hderrs.Detail{{Field: "alarm", Error: "out of range"}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"bad alarm","details":[{"field":"alarm","error":"out of range"}]}`, string(data))

	data, err = json.Marshal(hderrs.E(http.StatusNotFound))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"Not Found"}`, string(data))
}
