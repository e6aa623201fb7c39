// Package nodes serves the node endpoints of the cluster API.
package nodes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/common/paging"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/response"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/store"
)

type nodeStore interface {
	ListNodes(ctx context.Context, clusterName string) ([]store.Node, error)
	GetNode(ctx context.Context, name, clusterName string) (*store.Node, error)
}

// Router carries the handlers' dependencies.
type Router struct {
	db     nodeStore
	logger *slog.Logger
}

// NewRouter creates the nodes module.
func NewRouter(db *store.Store, logger *slog.Logger) *Router {
	return newRouter(db, logger)
}

func newRouter(db nodeStore, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{db: db, logger: logger}
}

// Register mounts the node routes.
func (rt *Router) Register(grp *gin.RouterGroup) {
	g := grp.Group("/nodes")
	g.GET("/list", rt.list)
	g.GET("/one", rt.one)
}

type listQuery struct {
	paging.PagingQuery
	ClusterName string `form:"cluster_name"`
}

func (rt *Router) list(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: err.Error()})
		return
	}
	q.SetDefaults(1, 100, 1000)

	nodes, err := rt.db.ListNodes(c.Request.Context(), q.ClusterName)
	if err != nil {
		rt.logger.Error("list nodes failed", "error", err)
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "database error"})
		return
	}

	total := len(nodes)
	start := (q.Page - 1) * q.PageSize
	if start > total {
		start = total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	prev, next := response.BuildPageLinks(c.Request.URL, q.Page, q.PageSize, total)
	c.JSON(http.StatusOK, response.Response{
		Count:    total,
		Previous: prev,
		Next:     next,
		Results:  nodes[start:end],
	})
}

func (rt *Router) one(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "name is required"})
		return
	}
	node, err := rt.db.GetNode(c.Request.Context(), name, c.Query("cluster_name"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, response.Response{Detail: "node not found"})
		return
	}
	if err != nil {
		rt.logger.Error("get node failed", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "database error"})
		return
	}
	c.JSON(http.StatusOK, node)
}
