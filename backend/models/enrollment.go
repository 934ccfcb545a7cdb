package models

import (
	"time"

	"gorm.io/datatypes"
)

type EnrollmentStatus string

const (
	EnrollmentEnrolled   EnrollmentStatus = "enrolled"
	EnrollmentInProgress EnrollmentStatus = "in-progress"
	EnrollmentCompleted  EnrollmentStatus = "completed"
)

type LessonWatch struct {
	LessonID       string    `json:"lesson_id"`
	WatchedSeconds float64   `json:"watched_seconds"`
	LastWatchedAt  time.Time `json:"last_watched_at"`
}

// Completion records when a lesson or section was first completed.
type Completion struct {
	ID          string    `json:"id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Enrollment is hard-deleted so the (user, course) unique index never
// collides with a soft-deleted row.
type Enrollment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID   uint `gorm:"not null;uniqueIndex:idx_enrollments_user_course" json:"user_id"`
	CourseID uint `gorm:"not null;uniqueIndex:idx_enrollments_user_course;index" json:"course_id"`

	// Snapshots taken at creation, never refreshed.
	UserEmail   string `json:"user_email"`
	CourseTitle string `json:"course_title"`
	CourseSlug  string `json:"course_slug"`

	EnrolledAt        time.Time                        `gorm:"not null" json:"enrolled_at"`
	Status            EnrollmentStatus                 `gorm:"type:varchar(20);not null;index" json:"status"`
	Progress          int                              `gorm:"not null;default:0" json:"progress"`
	WatchSeconds      float64                          `gorm:"not null;default:0" json:"watch_seconds"`
	WatchHours        float64                          `gorm:"not null;default:0" json:"watch_hours"`
	LessonWatchTime   datatypes.JSONSlice[LessonWatch] `json:"lesson_watch_time"`
	CompletedLessons  datatypes.JSONSlice[Completion]  `json:"completed_lessons"`
	CompletedSections datatypes.JSONSlice[Completion]  `json:"completed_sections"`
}

func (e Enrollment) LessonCompleted(id string) bool {
	return hasCompletion(e.CompletedLessons, id)
}

func (e Enrollment) SectionCompleted(id string) bool {
	return hasCompletion(e.CompletedSections, id)
}

func hasCompletion(list []Completion, id string) bool {
	for _, c := range list {
		if c.ID == id {
			return true
		}
	}
	return false
}
