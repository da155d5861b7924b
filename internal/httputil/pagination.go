package httputil

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/chainsensors/capsules/internal/errors"
)

// Page bounds for list endpoints.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

var (
	errInvalidOffset = apperrors.Wrap(apperrors.ErrInvalidInput,
		"invalid offset parameter: must be a non-negative integer")
	errInvalidLimit = apperrors.Wrap(apperrors.ErrInvalidInput,
		"invalid limit parameter: must be between 1 and "+strconv.Itoa(MaxPageLimit))
)

// ParsePagination reads the offset and limit query parameters. Missing values default to
// 0 and DefaultPageLimit; the returned errors wrap ErrInvalidInput.
func ParsePagination(c *gin.Context) (offset, limit int, err error) {
	offset, err = queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		return 0, 0, errInvalidOffset
	}

	limit, err = queryInt(c, "limit", DefaultPageLimit)
	if err != nil || limit < 1 || limit > MaxPageLimit {
		return 0, 0, errInvalidLimit
	}

	return offset, limit, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
