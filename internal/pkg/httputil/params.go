package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// IDParam parses a numeric path parameter. Resource ids are positive
// server-assigned integers.
func IDParam(c *gin.Context, param string) (int64, error) {
	raw := c.Param(param)
	if raw == "" {
		return 0, fmt.Errorf("required parameter '%s' is missing", param)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("parameter '%s' must be a positive integer", param)
	}
	return id, nil
}
