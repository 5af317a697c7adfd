package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultRunHistory = 20

// SchedulerHandler exposes the pipeline scheduler
type SchedulerHandler struct {
	BaseHandler
	scheduler JobScheduler
}

// NewSchedulerHandler creates a new SchedulerHandler
func NewSchedulerHandler(scheduler JobScheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

// Status godoc
// @ID           getSchedulerStatus
// @Summary      Pipeline job status
// @Description  Returns every scheduled job with its interval, next run and last run
// @Tags         scheduler
// @Produce      json
// @Success      200 {object} APIResponse[[]scheduler.JobStatus]
// @Security     BearerAuth
// @Router       /scheduler/status [get]
func (h *SchedulerHandler) Status(c *gin.Context) {
	h.Success(c, h.scheduler.Status())
}

// History godoc
// @ID           getSchedulerHistory
// @Summary      Recent pipeline runs
// @Tags         scheduler
// @Produce      json
// @Param        limit query int false "Maximum runs" default(20)
// @Success      200 {object} APIResponse[[]scheduler.Run]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /scheduler/history [get]
func (h *SchedulerHandler) History(c *gin.Context) {
	limit := defaultRunHistory
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	h.Success(c, h.scheduler.History(limit))
}

// Trigger godoc
// @ID           triggerSchedulerJob
// @Summary      Run a job now
// @Description  Starts the named job outside its schedule; refused while a run is in progress
// @Tags         scheduler
// @Produce      json
// @Param        job path string true "Job name" Enums(sync_orders, drain_fiscal_queue)
// @Success      202 {object} APIResponse[scheduler.Run]
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /scheduler/{job}/trigger [post]
func (h *SchedulerHandler) Trigger(c *gin.Context) {
	run, err := h.scheduler.TriggerNow(c.Request.Context(), c.Param("job"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, run)
}
