package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xbinlabs/mining-rental/internal/response"
	"github.com/xbinlabs/mining-rental/internal/validator"
)

// validationFailed renders validator output as a 400 envelope. The field
// list goes into data so clients can mark individual inputs.
func validationFailed(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		env := response.Error("Validation failed", "VALIDATION_001", verrs.Error())
		env.Data = verrs
		return c.JSON(http.StatusBadRequest, env)
	}
	return c.JSON(http.StatusBadRequest,
		response.Error("Validation failed", "VALIDATION_001", err.Error()))
}

func internalError(c echo.Context, description string) error {
	return c.JSON(http.StatusInternalServerError,
		response.Error("Internal server error", "SERVER_001", description))
}

// pagination reads page/limit query params with sane bounds. Pages are
// 1-based; limit is capped at 100.
func pagination(c echo.Context) (limit, offset int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return limit, (page - 1) * limit
}

// listEnvelope is the payload for paginated admin lists.
type listEnvelope struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}
