package controllers

import (
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"academy/backend/models"
	"academy/backend/repository"
	"academy/backend/utils"
)

type AnalyticsController struct {
	DB    *gorm.DB
	Store *repository.Store
}

func NewAnalyticsController(db *gorm.DB, store *repository.Store) *AnalyticsController {
	return &AnalyticsController{DB: db, Store: store}
}

type EnrollmentRow struct {
	EnrollmentID uint                    `json:"enrollment_id"`
	UserID       uint                    `json:"user_id"`
	UserEmail    string                  `json:"user_email"`
	Status       models.EnrollmentStatus `json:"status"`
	Progress     int                     `json:"progress"`
	WatchHours   float64                 `json:"watch_hours"`
	EnrolledAt   time.Time               `json:"enrolled_at"`
}

type CourseReport struct {
	CourseID        uint            `json:"course_id"`
	CourseTitle     string          `json:"course_title"`
	Enrollments     int             `json:"enrollments"`
	Completed       int             `json:"completed"`
	InProgress      int             `json:"in_progress"`
	AverageProgress float64         `json:"average_progress"`
	TotalWatchHours float64         `json:"total_watch_hours"`
	Rows            []EnrollmentRow `json:"rows"`
}

// CourseAnalytics reports enrollment counts, completion and watch time for
// one course.
func (ac *AnalyticsController) CourseAnalytics(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.HandleError(c, err)
	}
	ctx := c.UserContext()

	course, err := ac.Store.FindCourse(ctx, id)
	if err != nil {
		return utils.HandleError(c, err)
	}

	var list []models.Enrollment
	if err := ac.DB.WithContext(ctx).
		Where("course_id = ?", course.ID).
		Order("enrolled_at").
		Find(&list).Error; err != nil {
		return utils.HandleError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, buildReport(course, list))
}

func buildReport(course *models.Course, list []models.Enrollment) CourseReport {
	report := CourseReport{
		CourseID:    course.ID,
		CourseTitle: course.Title,
		Enrollments: len(list),
		Rows:        make([]EnrollmentRow, 0, len(list)),
	}
	var progressSum int
	var watchSeconds float64
	for _, e := range list {
		switch e.Status {
		case models.EnrollmentCompleted:
			report.Completed++
		case models.EnrollmentInProgress:
			report.InProgress++
		}
		progressSum += e.Progress
		watchSeconds += e.WatchSeconds
		report.Rows = append(report.Rows, EnrollmentRow{
			EnrollmentID: e.ID,
			UserID:       e.UserID,
			UserEmail:    e.UserEmail,
			Status:       e.Status,
			Progress:     e.Progress,
			WatchHours:   e.WatchHours,
			EnrolledAt:   e.EnrolledAt,
		})
	}
	if len(list) > 0 {
		report.AverageProgress = round2(float64(progressSum) / float64(len(list)))
	}
	report.TotalWatchHours = round2(watchSeconds / 3600)
	return report
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
