// Package httpapi is the admin surface: health, metrics, and read-only
// inspection endpoints over the cache registry and recent orchestrator
// runs. It never drives a sync itself; the CLI does that.
package httpapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evalgo/jirasync/batch"
	"github.com/evalgo/jirasync/cache"
	"github.com/evalgo/jirasync/security"
)

// Server wires the admin routes to their backing components.
type Server struct {
	Echo *echo.Echo

	cacheRegistry *cache.Registry
	tracker       *batch.Tracker
}

// New builds the admin surface. jwt nil disables bearer-auth on the
// /admin group, which is only acceptable for local development; every
// shared deployment should pass a real JWTService.
func New(cacheRegistry *cache.Registry, tracker *batch.Tracker, jwt *security.JWTService) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	s := &Server{Echo: e, cacheRegistry: cacheRegistry, tracker: tracker}

	e.GET("/healthz", s.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	admin := e.Group("/admin")
	if jwt != nil {
		admin.Use(bearerAuth(jwt))
	}
	admin.GET("/cache/:tenant", s.handleCacheStats)
	admin.GET("/cache", s.handleCacheTotals)
	admin.GET("/batches", s.handleListBatches)
	admin.GET("/batches/:runID", s.handleGetBatch)

	return s
}

// bearerAuth validates the Authorization: Bearer <token> header against
// jwt, rejecting the request with 401 on a missing or invalid token.
func bearerAuth(jwt *security.JWTService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			if _, err := jwt.ValidateToken(token); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
			}
			return next(c)
		}
	}
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCacheStats(c echo.Context) error {
	tenantID := c.Param("tenant")
	for _, id := range s.cacheRegistry.TenantIDs() {
		if id == tenantID {
			return c.JSON(http.StatusOK, s.cacheRegistry.GetOrCreate(tenantID, nil).Stats())
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"error": "tenant has no cache yet"})
}

func (s *Server) handleCacheTotals(c echo.Context) error {
	return c.JSON(http.StatusOK, s.cacheRegistry.TotalStats())
}

func (s *Server) handleListBatches(c echo.Context) error {
	return c.JSON(http.StatusOK, s.tracker.List())
}

func (s *Server) handleGetBatch(c echo.Context) error {
	rec, ok := s.tracker.Get(c.Param("runID"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.JSON(http.StatusOK, rec)
}
