package errors

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorCategories(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		category   ErrorCategory
		code       interface{}
		httpStatus int
		exitCode   int
	}{
		{
			name:       "validation error",
			err:        NewValidationError("limit must be positive", "limit=0"),
			category:   CategoryValidation,
			code:       errbuilder.CodeInvalidArgument,
			httpStatus: http.StatusBadRequest,
			exitCode:   ExitInvalidArgument,
		},
		{
			name:       "not found error",
			err:        NewNotFoundError("developer", "nobody@x"),
			category:   CategoryNotFound,
			code:       errbuilder.CodeNotFound,
			httpStatus: http.StatusNotFound,
			exitCode:   ExitNotFound,
		},
		{
			name:       "malformed input error",
			err:        NewMalformedInputError("dev_info.json", 3, 7, "invalid JSON", fmt.Errorf("unexpected EOF")),
			category:   CategoryMalformedInput,
			code:       errbuilder.CodeInvalidArgument,
			httpStatus: http.StatusUnprocessableEntity,
			exitCode:   ExitMalformedInput,
		},
		{
			name:       "configuration error",
			err:        NewConfigurationError("bad config", nil),
			category:   CategoryConfiguration,
			code:       errbuilder.CodeFailedPrecondition,
			httpStatus: http.StatusInternalServerError,
			exitCode:   ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, tt.err.Category)
			assert.Equal(t, tt.code, tt.err.ErrBuilder.ErrCode())
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.Equal(t, tt.exitCode, ExitCode(tt.err))
		})
	}
}

func TestMalformedInputErrorMessage(t *testing.T) {
	err := NewMalformedInputError("results/dev_info.json", 12, 4, "invalid JSON", fmt.Errorf("unexpected EOF"))

	assert.Equal(t, "[MALFORMED_INPUT] results/dev_info.json:12:4: invalid JSON: unexpected EOF", err.Error())
	assert.Equal(t, "results/dev_info.json", err.Path)
	assert.Equal(t, 12, err.Line)
}

func TestToAppError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToAppError(nil))
	})

	t.Run("wrapped app error is unwrapped", func(t *testing.T) {
		original := NewNotFoundError("developer", "a@x")
		wrapped := fmt.Errorf("query failed: %w", original)

		assert.Same(t, original, ToAppError(wrapped))
		assert.True(t, Is(wrapped, CategoryNotFound))
		assert.Equal(t, ExitNotFound, ExitCode(wrapped))
	})

	t.Run("context cancellation", func(t *testing.T) {
		appErr := ToAppError(fmt.Errorf("scoring: %w", context.Canceled))
		assert.Equal(t, CategoryCanceled, appErr.Category)
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		appErr := ToAppError(fmt.Errorf("boom"))
		assert.Equal(t, CategoryInternal, appErr.Category)
		assert.Equal(t, ExitFailure, ExitCode(appErr))
	})
}

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/missing", func(c *gin.Context) {
		_ = c.Error(NewNotFoundError("developer", "ghost@x"))
	})
	r.GET("/invalid", func(c *gin.Context) {
		_ = c.Error(NewValidationError("limit must be positive"))
	})

	tests := []struct {
		path   string
		status int
	}{
		{path: "/missing", status: http.StatusNotFound},
		{path: "/invalid", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, err := http.NewRequest(http.MethodGet, tt.path, nil)
			require.NoError(t, err)

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), "category")
		})
	}
}

func TestRecoveryHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RecoveryHandler())
	r.GET("/panic", func(c *gin.Context) {
		panic("scorer exploded")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/panic", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal")
}
