package enrollment

import (
	"math"
	"time"

	"academy/backend/models"
)

func setWatchTime(e *models.Enrollment, lessonID string, seconds float64, now time.Time) {
	for i := range e.LessonWatchTime {
		if e.LessonWatchTime[i].LessonID == lessonID {
			e.LessonWatchTime[i].WatchedSeconds = seconds
			e.LessonWatchTime[i].LastWatchedAt = now
			return
		}
	}
	e.LessonWatchTime = append(e.LessonWatchTime, models.LessonWatch{
		LessonID:       lessonID,
		WatchedSeconds: seconds,
		LastWatchedAt:  now,
	})
}

// recompute derives watch totals, progress and status. They are never
// written any other way.
func recompute(e *models.Enrollment, course *models.Course) {
	var total float64
	for _, w := range e.LessonWatchTime {
		total += w.WatchedSeconds
	}
	e.WatchSeconds = total
	e.WatchHours = roundTo(total/3600, 2)

	e.Progress = Percent(e, course)
	switch {
	case e.Progress >= 100:
		e.Status = models.EnrollmentCompleted
	case e.Progress > 0:
		e.Status = models.EnrollmentInProgress
	default:
		e.Status = models.EnrollmentEnrolled
	}
}

// Percent is round(100 * completed / total) over the course's current
// lessons. Completions of lessons since removed from the course don't count.
func Percent(e *models.Enrollment, course *models.Course) int {
	order := course.LessonOrder()
	if len(order) == 0 {
		return 0
	}
	done := 0
	for _, id := range order {
		if e.LessonCompleted(id) {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(order))))
}

// firstOpenBefore returns the first lesson preceding lessonID in reading
// order that is not completed, or "".
func firstOpenBefore(e *models.Enrollment, course *models.Course, lessonID string) string {
	for _, id := range course.LessonOrder() {
		if id == lessonID {
			return ""
		}
		if !e.LessonCompleted(id) {
			return id
		}
	}
	return ""
}

func completeFinishedSections(e *models.Enrollment, course *models.Course, now time.Time) {
	for _, s := range course.Sections {
		if len(s.Lessons) == 0 || e.SectionCompleted(s.ID) {
			continue
		}
		finished := true
		for _, l := range s.Lessons {
			if !e.LessonCompleted(l.ID) {
				finished = false
				break
			}
		}
		if finished {
			e.CompletedSections = append(e.CompletedSections, models.Completion{ID: s.ID, CompletedAt: now})
		}
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
