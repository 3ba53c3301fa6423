package security

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ZanzyTHEbar/simdev/internal/errors"
)

// MaxDeveloperIDLength bounds developer ids; 320 is the longest valid email address.
const MaxDeveloperIDLength = 320

// ValidateDeveloperID rejects ids that cannot name a developer
func ValidateDeveloperID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewValidationError("developer id is empty")
	}

	if len(id) > MaxDeveloperIDLength {
		return apperrors.NewValidationError(
			fmt.Sprintf("developer id exceeds maximum length of %d bytes", MaxDeveloperIDLength))
	}

	if !utf8.ValidString(id) {
		return apperrors.NewValidationError("developer id contains invalid UTF-8 encoding")
	}

	// Check for control characters (null bytes included)
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return apperrors.NewValidationError("developer id contains invalid characters")
	}

	return nil
}

// ValidateDeveloperIDParams checks the named path parameters before the
// handler runs.
func ValidateDeveloperIDParams(params ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range params {
			if err := ValidateDeveloperID(c.Param(name)); err != nil {
				_ = c.Error(err)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
