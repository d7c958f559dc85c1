package middleware

import (
	"github.com/Mounkaila144/produit-sub000/internal/tenancy"
	"github.com/labstack/echo/v4"
)

// ErrorResponse writes err as {"error": message, "code": kind} with the
// status of its kind. Causes of internal errors stay in the logs.
func ErrorResponse(c echo.Context, err error) error {
	e := tenancy.AsError(err)
	return c.JSON(e.Status(), echo.Map{"error": e.Message, "code": e.Kind})
}
