package controllers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"academy/backend/access"
	"academy/backend/apperr"
	"academy/backend/identity"
	"academy/backend/models"
	"academy/backend/repository"
	"academy/backend/utils"
)

type TagsController struct {
	DB    *gorm.DB
	Store *repository.Store
}

func NewTagsController(db *gorm.DB, store *repository.Store) *TagsController {
	return &TagsController{DB: db, Store: store}
}

type TagRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Color       string `json:"color" validate:"omitempty,oneof=blue green purple yellow red gray"`
	Description string `json:"description" validate:"max=500"`
}

func (r TagRequest) apply(t *models.Tag) error {
	t.Title = r.Title
	t.Description = r.Description
	t.Color = models.TagGray
	if r.Color != "" {
		t.Color = models.TagColor(r.Color)
	}
	return identity.TagSlug(t)
}

func (tc *TagsController) List(c *fiber.Ctx) error {
	decision, err := access.Authorize(utils.Principal(c), access.ResourceTag, access.OpRead)
	if err != nil {
		return utils.HandleError(c, err)
	}
	var tags []models.Tag
	if err := tc.DB.WithContext(c.UserContext()).Scopes(decision.Scope()).Order("title").Find(&tags).Error; err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, tags)
}

func (tc *TagsController) Create(c *fiber.Ctx) error {
	if _, err := access.Authorize(utils.Principal(c), access.ResourceTag, access.OpCreate); err != nil {
		return utils.HandleError(c, err)
	}
	var input TagRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}

	var tag models.Tag
	if err := input.apply(&tag); err != nil {
		return utils.HandleError(c, err)
	}
	if err := tc.Store.SaveTag(c.UserContext(), &tag); err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Created(c, tag)
}

func (tc *TagsController) Update(c *fiber.Ctx) error {
	if _, err := access.Authorize(utils.Principal(c), access.ResourceTag, access.OpUpdate); err != nil {
		return utils.HandleError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.HandleError(c, err)
	}
	var input TagRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}
	ctx := c.UserContext()

	var tag models.Tag
	if err := tc.DB.WithContext(ctx).First(&tag, id).Error; err != nil {
		return utils.HandleError(c, notFoundOr(err, "tag"))
	}
	if err := input.apply(&tag); err != nil {
		return utils.HandleError(c, err)
	}
	if err := tc.Store.SaveTag(ctx, &tag); err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, tag)
}

func (tc *TagsController) Delete(c *fiber.Ctx) error {
	if _, err := access.Authorize(utils.Principal(c), access.ResourceTag, access.OpDelete); err != nil {
		return utils.HandleError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.HandleError(c, err)
	}

	err = tc.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM course_tags WHERE tag_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Tag{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("tag")
		}
		return nil
	})
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.NoContent(c)
}
