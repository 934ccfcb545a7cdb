package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"academy/backend/access"
	"academy/backend/apperr"
	"academy/backend/config"
	"academy/backend/models"
	"academy/backend/storage"
	"academy/backend/utils"
)

// MaxUploadSize bounds a single media upload.
const MaxUploadSize = 100 << 20

var allowedMediaTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/svg+xml",
	"video/mp4",
	"video/webm",
	"video/ogg",
	"application/ogg",
	"application/pdf",
}

// resizableTypes get the declared image size variants.
var resizableTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var imageSizes = []models.ImageSize{
	{Name: "thumbnail", Width: 400, Height: 300, Format: "webp"},
	{Name: "card", Width: 768, Height: 576, Format: "webp"},
	{Name: "large", Width: 1200, Format: "webp"},
}

type MediaController struct {
	DB      *gorm.DB
	Cfg     *config.Config
	Storage storage.ObjectStore
}

func NewMediaController(db *gorm.DB, cfg *config.Config, store storage.ObjectStore) *MediaController {
	return &MediaController{DB: db, Cfg: cfg, Storage: store}
}

type UpdateMediaRequest struct {
	Alt         *string         `json:"alt" validate:"omitempty,min=1"`
	Caption     json.RawMessage `json:"caption"`
	Visibility  *string         `json:"visibility" validate:"omitempty,oneof=public private"`
	ReceiptNote *string         `json:"receipt_note"`
}

func (mc *MediaController) List(c *fiber.Ctx) error {
	decision, err := access.Authorize(utils.Principal(c), access.ResourceMedia, access.OpRead)
	if err != nil {
		return utils.HandleError(c, err)
	}
	page, pageSize := pageParams(c)

	q := mc.DB.WithContext(c.UserContext()).Model(&models.Media{}).Scopes(decision.Scope())
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.HandleError(c, err)
	}
	var media []models.Media
	if err := q.Order("id DESC").Offset(offset(page, pageSize)).Limit(pageSize).Find(&media).Error; err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Paginate(c, media, total, page, pageSize)
}

// Get applies the same read filter as List, so a private asset of another
// user is reported as not found.
func (mc *MediaController) Get(c *fiber.Ctx) error {
	m, err := mc.load(c, access.OpRead)
	if err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, m)
}

// Serve streams the bytes of /media/:key. The asset row is looked up under
// the read filter, so private files of other users are not found.
func (mc *MediaController) Serve(c *fiber.Ctx) error {
	decision, err := access.Authorize(utils.Principal(c), access.ResourceMedia, access.OpRead)
	if err != nil {
		return utils.NotFound(c, "media not found")
	}
	ctx := c.UserContext()
	var m models.Media
	if err := mc.DB.WithContext(ctx).Scopes(decision.Scope()).
		Where("storage_key = ?", c.Params("key")).First(&m).Error; err != nil {
		return utils.HandleError(c, notFoundOr(err, "media"))
	}
	data, err := mc.Storage.Get(ctx, m.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return utils.HandleError(c, apperr.NotFound("media"))
	}
	if err != nil {
		return utils.HandleError(c, err)
	}
	c.Set(fiber.HeaderContentType, m.MimeType)
	if m.Visibility == models.VisibilityPrivate {
		c.Set(fiber.HeaderCacheControl, "private, no-store")
	}
	return c.Send(data)
}

// Upload takes a multipart form: file, alt, and optional visibility,
// caption (JSON) and receipt_note.
func (mc *MediaController) Upload(c *fiber.Ctx) error {
	p := utils.Principal(c)
	if _, err := access.Authorize(p, access.ResourceMedia, access.OpCreate); err != nil {
		return utils.HandleError(c, err)
	}

	alt := strings.TrimSpace(c.FormValue("alt"))
	if alt == "" {
		return utils.HandleError(c, apperr.Invalid("alt", "is required"))
	}
	visibility := models.Visibility(c.FormValue("visibility", string(models.VisibilityPublic)))
	if visibility != models.VisibilityPublic && visibility != models.VisibilityPrivate {
		return utils.HandleError(c, apperr.Invalid("visibility", "must be one of: public, private"))
	}
	var caption datatypes.JSON
	if raw := c.FormValue("caption"); raw != "" {
		if !json.Valid([]byte(raw)) {
			return utils.HandleError(c, apperr.Invalid("caption", "must be valid JSON"))
		}
		caption = datatypes.JSON(raw)
	}

	header, err := c.FormFile("file")
	if err != nil {
		return utils.HandleError(c, apperr.Invalid("file", "is required"))
	}
	if header.Size > MaxUploadSize {
		return utils.HandleError(c, apperr.Invalid("file", "is too large"))
	}
	f, err := header.Open()
	if err != nil {
		return utils.HandleError(c, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		return utils.HandleError(c, err)
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedMediaTypes...) {
		return utils.HandleError(c, apperr.Invalid("file", "type "+mt.String()+" is not allowed"))
	}

	ctx := c.UserContext()
	key := uuid.NewString() + mt.Extension()
	url, err := mc.Storage.Put(ctx, key, data)
	if err != nil {
		return utils.HandleError(c, err)
	}

	m := models.Media{
		Filename:     header.Filename,
		MimeType:     mt.String(),
		Filesize:     int64(len(data)),
		URL:          url,
		StorageKey:   key,
		Visibility:   visibility,
		UploadedByID: p.UserID,
		Alt:          alt,
		Caption:      caption,
		ReceiptNote:  c.FormValue("receipt_note"),
	}
	if mimetype.EqualsAny(mt.String(), resizableTypes...) {
		m.Sizes = append([]models.ImageSize(nil), imageSizes...)
	}

	if err := mc.DB.WithContext(ctx).Create(&m).Error; err != nil {
		_ = mc.Storage.Delete(ctx, key)
		return utils.HandleError(c, err)
	}
	return utils.Created(c, m)
}

func (mc *MediaController) Update(c *fiber.Ctx) error {
	var input UpdateMediaRequest
	if err := parseBody(c, &input); err != nil {
		return utils.HandleError(c, err)
	}
	m, err := mc.load(c, access.OpUpdate)
	if err != nil {
		return utils.HandleError(c, err)
	}

	if input.Alt != nil {
		m.Alt = *input.Alt
	}
	if input.Visibility != nil {
		m.Visibility = models.Visibility(*input.Visibility)
	}
	if input.ReceiptNote != nil {
		m.ReceiptNote = *input.ReceiptNote
	}
	if len(input.Caption) > 0 {
		m.Caption = datatypes.JSON(input.Caption)
	}
	m.UpdatedByID = actor(utils.Principal(c))

	if err := mc.DB.WithContext(c.UserContext()).Save(m).Error; err != nil {
		return utils.HandleError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, m)
}

func (mc *MediaController) Delete(c *fiber.Ctx) error {
	m, err := mc.load(c, access.OpDelete)
	if err != nil {
		return utils.HandleError(c, err)
	}
	ctx := c.UserContext()
	if err := mc.DB.WithContext(ctx).Delete(m).Error; err != nil {
		return utils.HandleError(c, err)
	}
	if err := mc.Storage.Delete(ctx, m.StorageKey); err != nil {
		return utils.HandleError(c, err)
	}
	return utils.NoContent(c)
}

// load fetches the :id asset through the row filter for op.
func (mc *MediaController) load(c *fiber.Ctx, op access.Operation) (*models.Media, error) {
	decision, err := access.Authorize(utils.Principal(c), access.ResourceMedia, op)
	if err != nil {
		return nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	var m models.Media
	if err := mc.DB.WithContext(c.UserContext()).Scopes(decision.Scope()).First(&m, id).Error; err != nil {
		return nil, notFoundOr(err, "media")
	}
	return &m, nil
}
