package middleware

import (
	"github.com/gin-gonic/gin"

	midsec "ChatLink/middleware/security"
)

// RouteOpt configures how a route is registered.
type RouteOpt struct {
	IsAuth    bool
	JWTSecret []byte
}

// GET registers a GET route, with the auth middleware in front when
// requested.
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, midsec.Middleware(opt.JWTSecret), handler)
	} else {
		r.GET(path, handler)
	}
}

// POST registers a POST route, with the auth middleware in front when
// requested.
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, midsec.Middleware(opt.JWTSecret), handler)
	} else {
		r.POST(path, handler)
	}
}
