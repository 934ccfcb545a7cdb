package controllers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"academy/backend/access"
	"academy/backend/apperr"
	"academy/backend/config"
	"academy/backend/enrollment"
	"academy/backend/identity"
	"academy/backend/models"
	"academy/backend/repository"
	"academy/backend/utils"
)

type CoursesController struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Store    *repository.Store
	Assigner *identity.Assigner
	Ledger   *enrollment.Ledger
}

func NewCoursesController(db *gorm.DB, cfg *config.Config, store *repository.Store,
	assigner *identity.Assigner, ledger *enrollment.Ledger) *CoursesController {
	return &CoursesController{DB: db, Cfg: cfg, Store: store, Assigner: assigner, Ledger: ledger}
}

// CourseRequest is the full course document for create and update.
// Sections and lessons without an id get one assigned.
type CourseRequest struct {
	Title                       string           `json:"title" validate:"required,max=200"`
	Slug                        string           `json:"slug" validate:"max=200"`
	Excerpt                     string           `json:"excerpt"`
	Description                 json.RawMessage  `json:"description"`
	Price                       int64            `json:"price" validate:"gte=0"`
	IsFree                      bool             `json:"is_free"`
	ThumbnailID                 *uint            `json:"thumbnail_id"`
	RequireSequentialCompletion *bool            `json:"require_sequential_completion"`
	Sections                    []models.Section `json:"sections"`
	IsPublished                 bool             `json:"is_published"`
	InstructorID                *uint            `json:"instructor_id"`
	TagIDs                      []uint           `json:"tag_ids"`
}

func (r CourseRequest) course() models.Course {
	c := models.Course{
		Title:        strings.TrimSpace(r.Title),
		Slug:         identity.Slugify(r.Slug),
		Excerpt:      r.Excerpt,
		Price:        r.Price,
		IsFree:       r.IsFree,
		ThumbnailID:  r.ThumbnailID,
		Sections:     r.Sections,
		IsPublished:  r.IsPublished,
		InstructorID: r.InstructorID,
	}
	if len(r.Description) > 0 {
		c.Description = datatypes.JSON(r.Description)
	}
	return c
}

// List returns the catalog. Filters: search (title), tag (slug), published.
func (cc *CoursesController) List(c *fiber.Ctx) error {
	decision, err := access.Authorize(utils.Principal(c), access.ResourceCourse, access.OpRead)
	if err != nil {
		return utils.HandleError(c, err)
	}
	page, pageSize := pageParams(c)

	q := cc.DB.WithContext(c.UserContext()).Model(&models.Course{}).Scopes(decision.Scope())
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q = q.Where("LOWER(courses.title) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if tag := c.Query("tag"); tag != "" {
		q = q.Where("courses.id IN (?)", cc.DB.Table("course_tags").
			Select("course_tags.course_id").
			Joins("JOIN tags ON tags.id = course_tags.tag_id").
			Where("tags.slug = ?", tag))
	}
	if published := c.Query("published"); published != "" {
		b, err := strconv.ParseBool(published)
		if err != nil {
			return utils.HandleError(c, apperr.Invalid("published", "must be true or false"))
		}
		q = q.Where("courses.is_published = ?", b)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.HandleError(c, err)
	}
	var courses []models.Course
	if err := q.Preload("Tags").
		Order("courses.created_at DESC, courses.id DESC").
		Offset(offset(page, pageSize)).Limit(pageSize).
		Find(&courses).Error; err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Paginate(c, courses, total, page, pageSize)
}

// Get accepts a numeric id or a slug.
func (cc *CoursesController) Get(c *fiber.Ctx) error {
	decision, err := access.Authorize(utils.Principal(c), access.ResourceCourse, access.OpRead)
	if err != nil {
		return utils.HandleError(c, err)
	}
	course, err := cc.Store.FindCourseByKey(c.UserContext(), c.Params("idOrSlug"), decision.Scope())
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, course)
}

func (cc *CoursesController) Create(c *fiber.Ctx) error {
	p := utils.Principal(c)
	if _, err := access.Authorize(p, access.ResourceCourse, access.OpCreate); err != nil {
		return utils.HandleError(c, err)
	}
	var input CourseRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}
	ctx := c.UserContext()

	course := input.course()
	course.RequireSequentialCompletion = true
	if input.RequireSequentialCompletion != nil {
		course.RequireSequentialCompletion = *input.RequireSequentialCompletion
	}
	course.CreatedByID = actor(p)
	course.UpdatedByID = actor(p)
	if err := cc.Assigner.AssignOnCreate(&course); err != nil {
		return utils.HandleError(c, err)
	}

	tags, err := cc.Store.FindTags(ctx, input.TagIDs)
	if err != nil {
		return utils.HandleError(c, err)
	}
	if err := cc.Store.SaveCourse(ctx, &course, tags); err != nil {
		return utils.HandleError(c, err)
	}
	course.Tags = tags
	return utils.Created(c, course)
}

// Update replaces the course document. Existing section and lesson ids are
// kept; see identity.Assigner.
func (cc *CoursesController) Update(c *fiber.Ctx) error {
	p := utils.Principal(c)
	if _, err := access.Authorize(p, access.ResourceCourse, access.OpUpdate); err != nil {
		return utils.HandleError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.HandleError(c, err)
	}
	var input CourseRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}
	ctx := c.UserContext()

	prev, err := cc.Store.FindCourse(ctx, id)
	if err != nil {
		return utils.HandleError(c, err)
	}

	next := input.course()
	next.ID = prev.ID
	next.CreatedAt = prev.CreatedAt
	next.CreatedByID = prev.CreatedByID
	next.UpdatedByID = actor(p)
	next.RequireSequentialCompletion = prev.RequireSequentialCompletion
	if input.RequireSequentialCompletion != nil {
		next.RequireSequentialCompletion = *input.RequireSequentialCompletion
	}
	if err := cc.Assigner.AssignOnUpdate(&next, *prev); err != nil {
		return utils.HandleError(c, err)
	}

	tags, err := cc.Store.FindTags(ctx, input.TagIDs)
	if err != nil {
		return utils.HandleError(c, err)
	}
	if err := cc.Store.SaveCourse(ctx, &next, tags); err != nil {
		return utils.HandleError(c, err)
	}
	next.Tags = tags
	return utils.Success(c, fiber.StatusOK, next)
}

func (cc *CoursesController) Delete(c *fiber.Ctx) error {
	if _, err := access.Authorize(utils.Principal(c), access.ResourceCourse, access.OpDelete); err != nil {
		return utils.HandleError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.HandleError(c, err)
	}

	err = cc.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM course_tags WHERE course_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Course{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("course")
		}
		return nil
	})
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.NoContent(c)
}

// Enroll enrolls the caller into a published free course. Paid courses go
// through checkout.
func (cc *CoursesController) Enroll(c *fiber.Ctx) error {
	p := utils.Principal(c)
	id, err := paramID(c, "id")
	if err != nil {
		return utils.HandleError(c, err)
	}
	ctx := c.UserContext()

	course, err := cc.Store.FindCourse(ctx, id)
	if err != nil {
		return utils.HandleError(c, err)
	}
	if !course.IsPublished {
		return utils.HandleError(c, apperr.NotFound("course"))
	}
	if !course.Free() {
		return utils.HandleError(c, apperr.Invalid("course", "requires payment, use checkout"))
	}

	e, err := cc.Ledger.Create(ctx, p.UserID, course.ID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Created(c, e)
}

// actor is the audit reference for p; the system principal has none.
func actor(p access.Principal) *uint {
	if p.UserID == 0 {
		return nil
	}
	id := p.UserID
	return &id
}
