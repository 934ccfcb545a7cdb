package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type Lesson struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	VideoID  *uint           `json:"video_id,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
	Duration string          `json:"duration,omitempty"`
}

type Section struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Lessons []Lesson `json:"lessons"`
}

type Course struct {
	Model
	Title       string         `gorm:"not null" json:"title"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	Excerpt     string         `json:"excerpt"`
	Description datatypes.JSON `json:"description,omitempty"`
	Price       int64          `gorm:"not null;default:0;check:price >= 0" json:"price"`
	IsFree      bool           `gorm:"not null;default:false" json:"is_free"`
	ThumbnailID *uint          `json:"thumbnail_id,omitempty"`

	// RequireSequentialCompletion has no column default: gorm would replace
	// an explicit false with it. Controllers default it to true.
	RequireSequentialCompletion bool                         `gorm:"not null" json:"require_sequential_completion"`
	Sections                    datatypes.JSONSlice[Section] `json:"sections"`

	IsPublished  bool       `gorm:"not null;default:false;index" json:"is_published"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	InstructorID *uint      `json:"instructor_id,omitempty"`
	CreatedByID  *uint      `json:"created_by_id,omitempty"`
	UpdatedByID  *uint      `json:"updated_by_id,omitempty"`

	Tags []Tag `gorm:"many2many:course_tags;" json:"tags,omitempty"`
}

// LessonOrder lists lesson ids in reading order: sections in order, then
// lessons in order within each section.
func (c Course) LessonOrder() []string {
	var ids []string
	for _, s := range c.Sections {
		for _, l := range s.Lessons {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

func (c Course) HasLesson(id string) bool {
	for _, lessonID := range c.LessonOrder() {
		if lessonID == id {
			return true
		}
	}
	return false
}

func (c Course) Section(id string) (Section, bool) {
	for _, s := range c.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

func (c Course) Free() bool {
	return c.IsFree || c.Price == 0
}
