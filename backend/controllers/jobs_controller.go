package controllers

import (
	"github.com/gofiber/fiber/v2"

	"academy/backend/access"
	"academy/backend/apperr"
	"academy/backend/models"
	"academy/backend/repository"
	"academy/backend/utils"
)

type JobsController struct {
	Jobs *repository.JobQueue
}

func NewJobsController(jobs *repository.JobQueue) *JobsController {
	return &JobsController{Jobs: jobs}
}

// List shows dispatcher jobs, newest first. Filters: status, limit.
func (jc *JobsController) List(c *fiber.Ctx) error {
	if _, err := access.Authorize(utils.Principal(c), access.ResourceJob, access.OpRead); err != nil {
		return utils.HandleError(c, err)
	}

	status := models.JobStatus(c.Query("status"))
	switch status {
	case "", models.JobQueued, models.JobRunning, models.JobSucceeded, models.JobFailed:
	default:
		return utils.HandleError(c, apperr.Invalid("status", "must be one of: queued, running, succeeded, failed"))
	}
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	jobs, err := jc.Jobs.List(c.UserContext(), status, limit)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, jobs)
}
