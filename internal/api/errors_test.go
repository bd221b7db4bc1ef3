package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/domain"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/service/auth"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/store"
	"github.com/ButtcoinTNB/report-gen-sub001/internal/task"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"task not found", task.ErrTaskNotFound, http.StatusNotFound},
		{"store not found", store.ErrTaskNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", task.ErrTaskNotFound), http.StatusNotFound},
		{"unsupported type", task.ErrUnsupportedTaskType, http.StatusBadRequest},
		{"validation", domain.ErrValidation, http.StatusBadRequest},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Task not found", GetSafeErrorMessage(task.ErrTaskNotFound))
	assert.Equal(t, "Invalid token", GetSafeErrorMessage(auth.ErrExpiredToken))
	assert.Equal(t, "Unsupported task type", GetSafeErrorMessage(task.ErrUnsupportedTaskType))
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))

	// Internal details must never leak through the safe message.
	leaky := errors.New("pq: connection to postgres://admin:hunter2@db:5432 failed")
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(leaky))
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	err := errors.New(
		"Key: 'CreateTaskRequest.Type' Error:Field validation for 'Type' failed on the 'required' tag")
	msg := SanitizeValidationError(err)
	assert.Contains(t, msg, "Type")
	assert.NotContains(t, msg, "CreateTaskRequest")

	assert.Equal(t, "Invalid request data", SanitizeValidationError(errors.New("boom")))
}
