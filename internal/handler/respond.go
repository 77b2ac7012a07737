package handler

import "github.com/labstack/echo/v4"

// All endpoints answer with the same envelope: {success:true, data} on
// success and {success:false, error} on failure.  The helpers keep the
// handlers from restating it everywhere.

func respondOK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func respondErr(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": msg})
}
