package controllers

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"academy/backend/access"
	"academy/backend/apperr"
	"academy/backend/config"
	"academy/backend/models"
	"academy/backend/repository"
	"academy/backend/utils"
)

type UserController struct {
	DB    *gorm.DB
	Cfg   *config.Config
	Store *repository.Store
}

func NewUserController(db *gorm.DB, cfg *config.Config, store *repository.Store) *UserController {
	return &UserController{DB: db, Cfg: cfg, Store: store}
}

// UpdateUserRequest is a partial update; nil fields are left unchanged.
// Roles may only be set by an admin.
type UpdateUserRequest struct {
	FirstName *string  `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string  `json:"last_name" validate:"omitempty,max=100"`
	Phone     *string  `json:"phone" validate:"omitempty,max=32"`
	AvatarID  *uint    `json:"avatar_id"`
	Password  *string  `json:"password" validate:"omitempty,min=8"`
	Roles     []string `json:"roles" validate:"omitempty,dive,oneof=admin staff editor customer"`
}

func (uc *UserController) Me(c *fiber.Ctx) error {
	user, err := uc.Store.FindUser(c.UserContext(), utils.Principal(c).UserID)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, user)
}

func (uc *UserController) List(c *fiber.Ctx) error {
	decision, err := access.Authorize(utils.Principal(c), access.ResourceUser, access.OpRead)
	if err != nil {
		return utils.HandleError(c, err)
	}
	page, pageSize := pageParams(c)

	q := uc.DB.WithContext(c.UserContext()).Model(&models.User{}).Scopes(decision.Scope())
	if email := c.Query("email"); email != "" {
		q = q.Where("email LIKE ?", "%"+email+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.HandleError(c, err)
	}
	var users []models.User
	if err := q.Order("id").Offset(offset(page, pageSize)).Limit(pageSize).Find(&users).Error; err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Paginate(c, users, total, page, pageSize)
}

func (uc *UserController) Update(c *fiber.Ctx) error {
	p := utils.Principal(c)
	decision, err := access.Authorize(p, access.ResourceUser, access.OpUpdate)
	if err != nil {
		return utils.HandleError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.HandleError(c, err)
	}
	var input UpdateUserRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}
	if input.Roles != nil && !p.IsAdmin() {
		return utils.HandleError(c, apperr.ErrUnauthorized)
	}

	ctx := c.UserContext()
	var user models.User
	if err := uc.DB.WithContext(ctx).Scopes(decision.Scope()).First(&user, id).Error; err != nil {
		return utils.HandleError(c, notFoundOr(err, "user"))
	}

	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.Phone != nil {
		user.Phone = *input.Phone
	}
	if input.AvatarID != nil {
		user.AvatarID = input.AvatarID
	}
	if input.Roles != nil {
		user.Roles = input.Roles
	}
	if input.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return utils.InternalServerError(c, "Could not hash password")
		}
		user.PasswordHash = string(hash)
	}

	if err := uc.DB.WithContext(ctx).Save(&user).Error; err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, user)
}

func (uc *UserController) Delete(c *fiber.Ctx) error {
	if _, err := access.Authorize(utils.Principal(c), access.ResourceUser, access.OpDelete); err != nil {
		return utils.HandleError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return utils.HandleError(c, err)
	}

	res := uc.DB.WithContext(c.UserContext()).Delete(&models.User{}, id)
	if res.Error != nil {
		return utils.HandleError(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.HandleError(c, apperr.NotFound("user"))
	}
	return utils.NoContent(c)
}
