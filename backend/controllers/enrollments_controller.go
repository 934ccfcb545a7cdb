package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"academy/backend/access"
	"academy/backend/enrollment"
	"academy/backend/models"
	"academy/backend/repository"
	"academy/backend/utils"
)

type EnrollmentsController struct {
	DB     *gorm.DB
	Store  *repository.Store
	Ledger *enrollment.Ledger
}

func NewEnrollmentsController(db *gorm.DB, store *repository.Store, ledger *enrollment.Ledger) *EnrollmentsController {
	return &EnrollmentsController{DB: db, Store: store, Ledger: ledger}
}

type CreateEnrollmentRequest struct {
	UserID   uint `json:"user_id" validate:"required"`
	CourseID uint `json:"course_id" validate:"required"`
}

type WatchTimeRequest struct {
	LessonID string   `json:"lesson_id" validate:"required"`
	Seconds  *float64 `json:"seconds" validate:"required"`
}

// List is filtered to the caller's own enrollments unless the caller is an
// admin. Optional filters: course_id, status.
func (ec *EnrollmentsController) List(c *fiber.Ctx) error {
	decision, err := access.Authorize(utils.Principal(c), access.ResourceEnrollment, access.OpRead)
	if err != nil {
		return utils.HandleError(c, err)
	}
	page, pageSize := pageParams(c)

	q := ec.DB.WithContext(c.UserContext()).Model(&models.Enrollment{}).Scopes(decision.Scope())
	if courseID := c.QueryInt("course_id"); courseID > 0 {
		q = q.Where("course_id = ?", courseID)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.HandleError(c, err)
	}
	var list []models.Enrollment
	if err := q.Order("enrolled_at DESC, id DESC").Offset(offset(page, pageSize)).Limit(pageSize).Find(&list).Error; err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Paginate(c, list, total, page, pageSize)
}

func (ec *EnrollmentsController) Get(c *fiber.Ctx) error {
	e, err := ec.visible(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, e)
}

func (ec *EnrollmentsController) Create(c *fiber.Ctx) error {
	if _, err := access.Authorize(utils.Principal(c), access.ResourceEnrollment, access.OpCreate); err != nil {
		return utils.HandleError(c, err)
	}
	var input CreateEnrollmentRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}

	e, err := ec.Ledger.Create(c.UserContext(), input.UserID, input.CourseID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Created(c, e)
}

func (ec *EnrollmentsController) Delete(c *fiber.Ctx) error {
	if _, err := access.Authorize(utils.Principal(c), access.ResourceEnrollment, access.OpDelete); err != nil {
		return utils.HandleError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.HandleError(c, err)
	}
	if err := ec.Store.DeleteEnrollment(c.UserContext(), id); err != nil {
		return utils.HandleError(c, err)
	}
	return utils.NoContent(c)
}

func (ec *EnrollmentsController) RecordWatchTime(c *fiber.Ctx) error {
	e, err := ec.visible(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	var input WatchTimeRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}

	updated, err := ec.Ledger.RecordWatchTime(c.UserContext(), e.ID, input.LessonID, *input.Seconds)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, updated)
}

func (ec *EnrollmentsController) CompleteLesson(c *fiber.Ctx) error {
	e, err := ec.visible(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	updated, err := ec.Ledger.MarkLessonComplete(c.UserContext(), e.ID, c.Params("lessonId"))
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, updated)
}

func (ec *EnrollmentsController) CompleteSection(c *fiber.Ctx) error {
	e, err := ec.visible(c)
	if err != nil {
		return utils.HandleError(c, err)
	}
	updated, err := ec.Ledger.MarkSectionComplete(c.UserContext(), e.ID, c.Params("sectionId"))
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, updated)
}

// visible loads the :id enrollment through the read filter. Progress
// endpoints use it in place of the update rule: owners record their own
// progress.
func (ec *EnrollmentsController) visible(c *fiber.Ctx) (*models.Enrollment, error) {
	decision, err := access.Authorize(utils.Principal(c), access.ResourceEnrollment, access.OpRead)
	if err != nil {
		return nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	var e models.Enrollment
	if err := ec.DB.WithContext(c.UserContext()).Scopes(decision.Scope()).First(&e, id).Error; err != nil {
		return nil, notFoundOr(err, "enrollment")
	}
	return &e, nil
}
