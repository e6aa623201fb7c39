// Package jobs serves the job endpoints of the cluster API.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/store"
)

// jobStore is the slice of the store these handlers use.
type jobStore interface {
	ListJobs(ctx context.Context, f store.JobFilter) ([]store.Job, error)
	GetJobs(ctx context.Context, jobID, clusterName string) ([]store.Job, error)
	GetUserProps(ctx context.Context, jobID, clusterName string) (map[string]string, error)
	SetUserProps(ctx context.Context, jobID, clusterName string, updates map[string]string) (map[string]string, error)
	DeleteUserProps(ctx context.Context, jobID, clusterName string, keys []string) error
}

// Router carries the handlers' dependencies.
type Router struct {
	db     jobStore
	logger *slog.Logger
	now    func() time.Time
}

// NewRouter creates the jobs module.
func NewRouter(db *store.Store, logger *slog.Logger) *Router {
	return newRouter(db, logger)
}

func newRouter(db jobStore, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{db: db, logger: logger, now: time.Now}
}

// Register mounts the job routes.
func (rt *Router) Register(grp *gin.RouterGroup) {
	g := grp.Group("/jobs")
	g.GET("/list", rt.list)
	g.GET("/one", rt.one)
	g.GET("/user_props", rt.getUserProps)
	g.PUT("/user_props", rt.setUserProps)
	g.DELETE("/user_props", rt.deleteUserProps)
}
