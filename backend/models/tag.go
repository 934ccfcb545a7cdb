package models

type TagColor string

const (
	TagBlue   TagColor = "blue"
	TagGreen  TagColor = "green"
	TagPurple TagColor = "purple"
	TagYellow TagColor = "yellow"
	TagRed    TagColor = "red"
	TagGray   TagColor = "gray"
)

func (c TagColor) Valid() bool {
	switch c {
	case TagBlue, TagGreen, TagPurple, TagYellow, TagRed, TagGray:
		return true
	}
	return false
}

type Tag struct {
	Model
	Title       string   `gorm:"uniqueIndex;not null" json:"title"`
	Slug        string   `gorm:"uniqueIndex;not null" json:"slug"`
	Color       TagColor `gorm:"type:varchar(16);not null;default:gray" json:"color"`
	Description string   `json:"description,omitempty"`
}
