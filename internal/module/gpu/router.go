// Package gpu serves the GPU reference table of the cluster API.
package gpu

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/response"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/store"
)

type gpuStore interface {
	ListGPUs(ctx context.Context) ([]store.GPU, error)
	GetGPU(ctx context.Context, name string) (*store.GPU, error)
}

// Router carries the handlers' dependencies.
type Router struct {
	db     gpuStore
	logger *slog.Logger
}

// NewRouter creates the gpu module.
func NewRouter(db *store.Store, logger *slog.Logger) *Router {
	return newRouter(db, logger)
}

func newRouter(db gpuStore, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{db: db, logger: logger}
}

// Register mounts the gpu routes.
func (rt *Router) Register(grp *gin.RouterGroup) {
	g := grp.Group("/gpu")
	g.GET("/list", rt.list)
	g.GET("/one", rt.one)
}

// The table has a handful of rows, so the list is never paginated; the
// envelope stays the same as everywhere else.
func (rt *Router) list(c *gin.Context) {
	gpus, err := rt.db.ListGPUs(c.Request.Context())
	if err != nil {
		rt.logger.Error("list gpus failed", "error", err)
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "database error"})
		return
	}
	c.JSON(http.StatusOK, response.Response{
		Count:    len(gpus),
		Previous: url.URL{},
		Next:     url.URL{},
		Results:  gpus,
	})
}

func (rt *Router) one(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "name is required"})
		return
	}
	g, err := rt.db.GetGPU(c.Request.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, response.Response{Detail: "gpu not found"})
		return
	}
	if err != nil {
		rt.logger.Error("get gpu failed", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "database error"})
		return
	}
	c.JSON(http.StatusOK, g)
}
