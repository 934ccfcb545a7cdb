package models

import (
	"gorm.io/datatypes"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// ImageSize is a derived variant of an uploaded image.
type ImageSize struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height,omitempty"`
	Format string `json:"format"`
	URL    string `json:"url,omitempty"`
}

type Media struct {
	Model
	Filename     string                         `gorm:"not null" json:"filename"`
	MimeType     string                         `gorm:"not null" json:"mime_type"`
	Filesize     int64                          `json:"filesize"`
	URL          string                         `json:"url"`
	StorageKey   string                         `gorm:"index" json:"-"`
	Visibility   Visibility                     `gorm:"type:varchar(16);not null;index" json:"visibility"`
	UploadedByID uint                           `gorm:"not null;index" json:"uploaded_by_id"`
	UpdatedByID  *uint                          `gorm:"index" json:"updated_by_id,omitempty"`
	Alt          string                         `gorm:"not null" json:"alt"`
	Caption      datatypes.JSON                 `json:"caption,omitempty"`
	ReceiptNote  string                         `json:"receipt_note,omitempty"`
	Sizes        datatypes.JSONSlice[ImageSize] `json:"sizes,omitempty"`
}
