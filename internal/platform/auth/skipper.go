package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists URL paths that bypass authentication. These are
// infrastructure endpoints that must stay reachable without credentials.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

// Skipper returns true for requests whose path should skip authentication.
func Skipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
