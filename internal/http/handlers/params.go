package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/seoflow-backend/internal/platform/apperr"
)

func uintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.Validation(name, "must be a positive integer")
	}
	return uint(v), nil
}
