package jobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/common/paging"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/response"
	"github.com/mila-iqia/clockwork-sub001/internal/pkg/store"
)

type listQuery struct {
	paging.PagingQuery
	Username     string `form:"username"`
	ClusterName  string `form:"cluster_name"`
	RelativeTime string `form:"relative_time"`
}

// list answers GET /jobs/list. relative_time is seconds; only jobs that
// ended within that window, or are still running, are returned.
func (rt *Router) list(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: err.Error()})
		return
	}
	q.SetDefaults(1, 100, 1000)

	filter := store.JobFilter{
		Username:    q.Username,
		ClusterName: q.ClusterName,
		Now:         rt.now(),
	}
	if q.RelativeTime != "" {
		seconds, err := strconv.ParseInt(q.RelativeTime, 10, 64)
		if err != nil || seconds <= 0 {
			c.JSON(http.StatusBadRequest, response.Response{
				Detail: "Invalid value for relative_time: " + q.RelativeTime,
			})
			return
		}
		window := time.Duration(seconds) * time.Second
		filter.RelativeTime = &window
	}

	jobs, err := rt.db.ListJobs(c.Request.Context(), filter)
	if err != nil {
		rt.logger.Error("list jobs failed", "error", err)
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "database error"})
		return
	}

	total := len(jobs)
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
		Results:  jobs[start:end],
	})
}

// one answers GET /jobs/one. Without cluster_name a job id can match on
// several clusters; that ambiguity is an error, not a silent pick.
func (rt *Router) one(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "job_id is required"})
		return
	}
	jobs, err := rt.db.GetJobs(c.Request.Context(), jobID, c.Query("cluster_name"))
	if err != nil {
		rt.logger.Error("get job failed", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "database error"})
		return
	}
	switch len(jobs) {
	case 0:
		c.JSON(http.StatusNotFound, response.Response{Detail: "job not found"})
	case 1:
		c.JSON(http.StatusOK, jobs[0])
	default:
		c.JSON(http.StatusInternalServerError, response.Response{
			Detail: "job_id matches on more than one cluster, pass cluster_name",
		})
	}
}

func (rt *Router) getUserProps(c *gin.Context) {
	jobID, clusterName := c.Query("job_id"), c.Query("cluster_name")
	if jobID == "" || clusterName == "" {
		c.JSON(http.StatusBadRequest, response.Response{Detail: "job_id and cluster_name are required"})
		return
	}
	props, err := rt.db.GetUserProps(c.Request.Context(), jobID, clusterName)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, response.Response{Detail: "job not found"})
		return
	}
	if err != nil {
		rt.logger.Error("get props failed", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "database error"})
		return
	}
	c.JSON(http.StatusOK, props)
}

type setPropsRequest struct {
	JobID       string            `json:"job_id" binding:"required"`
	ClusterName string            `json:"cluster_name" binding:"required"`
	Updates     map[string]string `json:"updates" binding:"required"`
}

// setUserProps answers PUT /jobs/user_props. The update merges key by key:
// keys absent from the request keep their stored value.
func (rt *Router) setUserProps(c *gin.Context) {
	var req setPropsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: err.Error()})
		return
	}
	merged, err := rt.db.SetUserProps(c.Request.Context(), req.JobID, req.ClusterName, req.Updates)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, response.Response{Detail: "job not found"})
		return
	}
	var tooLarge *store.PropsTooLargeError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusInternalServerError, response.Response{Detail: tooLarge.Error()})
		return
	}
	if err != nil {
		rt.logger.Error("set props failed", "job_id", req.JobID, "error", err)
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "database error"})
		return
	}
	c.JSON(http.StatusOK, merged)
}

type deletePropsRequest struct {
	JobID       string          `json:"job_id" binding:"required"`
	ClusterName string          `json:"cluster_name" binding:"required"`
	Keys        json.RawMessage `json:"keys" binding:"required"`
}

// decodeKeys accepts "keys" as either one key or a list of keys.
func decodeKeys(raw json.RawMessage) ([]string, error) {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, errors.New("keys must be a string or a list of strings")
	}
	return many, nil
}

// deleteUserProps answers DELETE /jobs/user_props. Removing keys that do not
// exist succeeds: the requested state already holds.
func (rt *Router) deleteUserProps(c *gin.Context) {
	var req deletePropsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: err.Error()})
		return
	}
	keys, err := decodeKeys(req.Keys)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Response{Detail: err.Error()})
		return
	}
	if err := rt.db.DeleteUserProps(c.Request.Context(), req.JobID, req.ClusterName, keys); err != nil {
		rt.logger.Error("delete props failed", "job_id", req.JobID, "error", err)
		c.JSON(http.StatusInternalServerError, response.Response{Detail: "database error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
