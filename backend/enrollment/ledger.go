// Package enrollment keeps the record of a user's relationship to a course:
// creation with duplicate prevention, watch time and lesson/section
// completion, and the progress figures derived from them.
package enrollment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"academy/backend/apperr"
	"academy/backend/events"
	"academy/backend/models"
)

// Store is the persistence the ledger needs.
//
// EnrollmentExists is the pre-check. CreateEnrollment must still insert
// atomically with respect to other inserts for the same (UserID, CourseID)
// and report a collision as apperr.ErrDuplicateEnrollment. UpdateEnrollment
// must apply fn under a lock on the row and persist the result only if fn
// returns nil.
type Store interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
	FindCourse(ctx context.Context, id uint) (*models.Course, error)
	FindEnrollment(ctx context.Context, id uint) (*models.Enrollment, error)
	EnrollmentExists(ctx context.Context, userID, courseID uint) (bool, error)
	CreateEnrollment(ctx context.Context, e *models.Enrollment) error
	UpdateEnrollment(ctx context.Context, id uint, fn func(*models.Enrollment) error) (*models.Enrollment, error)
}

type Ledger struct {
	store  Store
	events events.Publisher
	log    *slog.Logger
	now    func() time.Time
}

func NewLedger(store Store, publisher events.Publisher, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, events: publisher, log: logger, now: time.Now}
}

// Create enrolls userID in courseID. User email and course title/slug are
// copied onto the enrollment as they are now and never refreshed.
func (l *Ledger) Create(ctx context.Context, userID, courseID uint) (*models.Enrollment, error) {
	user, err := l.store.FindUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	course, err := l.store.FindCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course %d: %w", courseID, err)
	}
	exists, err := l.store.EnrollmentExists(ctx, user.ID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if exists {
		return nil, apperr.ErrDuplicateEnrollment
	}

	e := &models.Enrollment{
		UserID:      user.ID,
		CourseID:    course.ID,
		UserEmail:   user.Email,
		CourseTitle: course.Title,
		CourseSlug:  course.Slug,
		EnrolledAt:  l.now().UTC(),
		Status:      models.EnrollmentEnrolled,
	}
	if err := l.store.CreateEnrollment(ctx, e); err != nil {
		return nil, err
	}

	l.log.InfoContext(ctx, "enrollment created",
		"module", "enrollment",
		"operation", "create",
		"enrollment_id", e.ID,
		"user_id", e.UserID,
		"course_id", e.CourseID,
	)
	if err := l.events.Publish(ctx, events.EnrollmentCreated, strconv.FormatUint(uint64(e.ID), 10), e); err != nil {
		l.log.WarnContext(ctx, "publish enrollment event failed", "enrollment_id", e.ID, "error", err)
	}
	return e, nil
}

// RecordWatchTime sets the watched seconds for one lesson, replacing any
// earlier value, and recomputes the aggregates.
func (l *Ledger) RecordWatchTime(ctx context.Context, enrollmentID uint, lessonID string, seconds float64) (*models.Enrollment, error) {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil, apperr.Invalid("seconds", "must be a non-negative number")
	}
	course, err := l.courseOf(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !course.HasLesson(lessonID) {
		return nil, apperr.Invalid("lesson_id", "is not part of this course")
	}

	now := l.now().UTC()
	return l.store.UpdateEnrollment(ctx, enrollmentID, func(e *models.Enrollment) error {
		setWatchTime(e, lessonID, seconds, now)
		recompute(e, course)
		return nil
	})
}

// MarkLessonComplete adds lessonID to the completed lessons. Completing an
// already completed lesson changes nothing. Courses that require sequential
// completion reject a lesson while an earlier one is still open.
func (l *Ledger) MarkLessonComplete(ctx context.Context, enrollmentID uint, lessonID string) (*models.Enrollment, error) {
	course, err := l.courseOf(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !course.HasLesson(lessonID) {
		return nil, apperr.Invalid("lesson_id", "is not part of this course")
	}

	now := l.now().UTC()
	return l.store.UpdateEnrollment(ctx, enrollmentID, func(e *models.Enrollment) error {
		if e.LessonCompleted(lessonID) {
			return nil
		}
		if course.RequireSequentialCompletion {
			if open := firstOpenBefore(e, course, lessonID); open != "" {
				return fmt.Errorf("lesson %s is not completed: %w", open, apperr.ErrSequenceViolation)
			}
		}
		e.CompletedLessons = append(e.CompletedLessons, models.Completion{ID: lessonID, CompletedAt: now})
		completeFinishedSections(e, course, now)
		recompute(e, course)
		return nil
	})
}

// MarkSectionComplete adds sectionID to the completed sections. With
// sequential completion every lesson of the section must be done first.
func (l *Ledger) MarkSectionComplete(ctx context.Context, enrollmentID uint, sectionID string) (*models.Enrollment, error) {
	course, err := l.courseOf(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	section, ok := course.Section(sectionID)
	if !ok {
		return nil, apperr.Invalid("section_id", "is not part of this course")
	}

	now := l.now().UTC()
	return l.store.UpdateEnrollment(ctx, enrollmentID, func(e *models.Enrollment) error {
		if e.SectionCompleted(sectionID) {
			return nil
		}
		if course.RequireSequentialCompletion {
			for _, lesson := range section.Lessons {
				if !e.LessonCompleted(lesson.ID) {
					return fmt.Errorf("lesson %s is not completed: %w", lesson.ID, apperr.ErrSequenceViolation)
				}
			}
		}
		e.CompletedSections = append(e.CompletedSections, models.Completion{ID: sectionID, CompletedAt: now})
		recompute(e, course)
		return nil
	})
}

func (l *Ledger) courseOf(ctx context.Context, enrollmentID uint) (*models.Course, error) {
	e, err := l.store.FindEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	course, err := l.store.FindCourse(ctx, e.CourseID)
	if err != nil {
		return nil, fmt.Errorf("load course %d: %w", e.CourseID, err)
	}
	return course, nil
}
