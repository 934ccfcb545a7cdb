package controllers

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"academy/backend/access"
	"academy/backend/apperr"
	"academy/backend/cache"
	"academy/backend/config"
	"academy/backend/events"
	"academy/backend/models"
	"academy/backend/notify"
	"academy/backend/repository"
	"academy/backend/utils"
)

const resetTokenTTL = time.Hour

type AuthController struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Store      *repository.Store
	Dispatcher *notify.Dispatcher
	Lockout    cache.LockoutStore
	Events     events.Publisher
	Log        *slog.Logger
}

func NewAuthController(db *gorm.DB, cfg *config.Config, store *repository.Store, dispatcher *notify.Dispatcher,
	lockout cache.LockoutStore, publisher events.Publisher, logger *slog.Logger) *AuthController {
	return &AuthController{
		DB:         db,
		Cfg:        cfg,
		Store:      store,
		Dispatcher: dispatcher,
		Lockout:    lockout,
		Events:     publisher,
		Log:        logger,
	}
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=32"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func authResponse(token string, user *models.User) fiber.Map {
	return fiber.Map{"token": token, "user": user}
}

// Register creates a customer account and queues the welcome and
// verification emails.
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var input RegisterRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.InternalServerError(c, "Could not hash password")
	}

	user := models.User{
		Email:             strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash:      string(hash),
		FirstName:         strings.TrimSpace(input.FirstName),
		LastName:          strings.TrimSpace(input.LastName),
		Phone:             input.Phone,
		Roles:             []string{string(access.RoleCustomer)},
		VerificationToken: uuid.NewString(),
	}
	if err := ac.Store.CreateUser(c.UserContext(), &user); err != nil {
		return utils.HandleError(c, err)
	}

	ctx := c.UserContext()
	if err := ac.Events.Publish(ctx, events.UserRegistered, user.Email, fiber.Map{
		"user_id": user.ID,
		"email":   user.Email,
	}); err != nil {
		ac.Log.WarnContext(ctx, "publish user event failed", "user_id", user.ID, "error", err)
	}
	ac.Dispatcher.OnUserCreated(ctx, user)
	ac.Dispatcher.SendVerification(ctx, user, user.VerificationToken)

	token, err := utils.GenerateJWTToken(user, ac.Cfg)
	if err != nil {
		return utils.InternalServerError(c, "Could not generate token")
	}
	return utils.Created(c, authResponse(token, &user))
}

// Login checks credentials. Repeated failures lock the email for
// LOGIN_LOCK_TIME.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input LoginRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}
	ctx := c.UserContext()
	key := strings.ToLower(strings.TrimSpace(input.Email))
	now := time.Now()

	state, err := ac.Lockout.Get(ctx, key)
	if err != nil {
		return utils.HandleError(c, err)
	}
	if state.Locked(now) {
		return utils.Error(c, fiber.StatusTooManyRequests,
			errors.New("too many failed login attempts, try again later"))
	}

	user, err := ac.Store.FindUserByEmail(ctx, key)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return utils.HandleError(c, err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		state, err := ac.Lockout.RecordFailure(ctx, key, now, ac.Cfg.LoginMaxAttempts, ac.Cfg.LoginLockTime)
		if err != nil {
			ac.Log.ErrorContext(ctx, "record login failure", "error", err)
		} else if state.Locked(now) {
			ac.Log.WarnContext(ctx, "login locked", "email", key, "failed_count", state.FailedCount)
		}
		return utils.Unauthorized(c, "Invalid credentials")
	}

	if err := ac.Lockout.Clear(ctx, key); err != nil {
		ac.Log.ErrorContext(ctx, "clear login failures", "error", err)
	}

	token, err := utils.GenerateJWTToken(*user, ac.Cfg)
	if err != nil {
		return utils.InternalServerError(c, "Could not generate token")
	}
	return utils.Success(c, fiber.StatusOK, authResponse(token, user))
}

func (ac *AuthController) VerifyEmail(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return utils.HandleError(c, apperr.Invalid("token", "is required"))
	}

	res := ac.DB.WithContext(c.UserContext()).Model(&models.User{}).
		Where("verification_token = ?", token).
		Updates(map[string]any{"verified": true, "verification_token": ""})
	if res.Error != nil {
		return utils.HandleError(c, res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.HandleError(c, apperr.Invalid("token", "is invalid or already used"))
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"verified": true})
}

// ForgotPassword answers the same way whether or not the email is known.
func (ac *AuthController) ForgotPassword(c *fiber.Ctx) error {
	var input struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}
	ctx := c.UserContext()

	user, err := ac.Store.FindUserByEmail(ctx, input.Email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
	case err != nil:
		return utils.HandleError(c, err)
	default:
		expires := time.Now().Add(resetTokenTTL).UTC()
		user.ResetToken = uuid.NewString()
		user.ResetTokenExpiresAt = &expires
		if err := ac.DB.WithContext(ctx).Model(user).
			Select("reset_token", "reset_token_expires_at").
			Updates(user).Error; err != nil {
			return utils.HandleError(c, err)
		}
		ac.Dispatcher.SendPasswordReset(ctx, *user, user.ResetToken)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"message": "If the email is registered, a reset link has been sent",
	})
}

func (ac *AuthController) ResetPassword(c *fiber.Ctx) error {
	var input struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=8"`
	}
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}
	ctx := c.UserContext()

	var user models.User
	err := ac.DB.WithContext(ctx).
		Where("reset_token = ? AND reset_token_expires_at > ?", input.Token, time.Now().UTC()).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.HandleError(c, apperr.Invalid("token", "is invalid or expired"))
	}
	if err != nil {
		return utils.HandleError(c, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return utils.InternalServerError(c, "Could not hash password")
	}
	if err := ac.DB.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":          string(hash),
		"reset_token":            "",
		"reset_token_expires_at": nil,
	}).Error; err != nil {
		return utils.HandleError(c, err)
	}
	if err := ac.Lockout.Clear(ctx, user.Email); err != nil {
		ac.Log.ErrorContext(ctx, "clear login failures", "error", err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"reset": true})
}
