package handler

import (
	"errors"
	"net/http"

	"accounting-sync/internal/adapter/http/dto"
	"accounting-sync/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// bindJSON decodes, trims and validates the request body into dst.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ErrBodyTooLarge(tooLarge.Limit)
		}
		return apperror.Validation(err.Error())
	}
	dto.TrimStruct(dst)
	return nil
}
