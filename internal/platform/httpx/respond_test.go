package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("user 1: %w", ErrNotFound), http.StatusNotFound, CodeNotFound},
		{ErrDuplicate, http.StatusConflict, CodeDuplicate},
		{ErrValidation, http.StatusBadRequest, CodeValidation},
		{ErrForbidden, http.StatusForbidden, CodeForbidden},
		{ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code)

		var body ErrorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Code)
		assert.NotEmpty(t, body.Error)
	}
}

func TestRespondErrorHidesInternalMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: connection refused"))
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestValidatorReportsJSONFieldNames(t *testing.T) {
	type form struct {
		Email string `json:"email" validate:"required,email"`
	}
	err := NewValidator().Struct(form{Email: "nope"})
	require.Error(t, err)

	rr := httptest.NewRecorder()
	RespondError(rr, err)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"email":"email"`)
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var target map[string]any
	err := DecodeJSON(req, &target)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestErrorWithFieldsKeepsErrorAndCode(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorWithFields(rr, http.StatusForbidden, "denied", "X", map[string]any{"required": "a", "error": "ignored"})

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "denied", body["error"])
	assert.Equal(t, "X", body["code"])
	assert.Equal(t, "a", body["required"])
}

func TestNewErrorKeepsMessageAndKind(t *testing.T) {
	err := NewError(ErrNotFound, "user not found")
	assert.Equal(t, "user not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)

	rr := httptest.NewRecorder()
	RespondError(rr, err)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"error":"user not found"`)
}
