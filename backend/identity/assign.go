// Package identity derives the stable identifiers of catalog records: URL
// slugs, section and lesson ids, and the first-publish timestamp.
//
// Section and lesson ids are referenced by enrollment progress, so once an
// id is assigned it is never regenerated. An update that resubmits an item
// without its id inherits the id of the previous item at the same position,
// unless that id is explicitly claimed elsewhere in the update.
package identity

import (
	"time"

	"academy/backend/apperr"
	"academy/backend/models"

	"github.com/google/uuid"
)

type Assigner struct {
	now   func() time.Time
	newID func() string
}

func NewAssigner() *Assigner {
	return &Assigner{now: time.Now, newID: uuid.NewString}
}

// NewAssignerWith is NewAssigner with an injectable clock and id source.
func NewAssignerWith(now func() time.Time, newID func() string) *Assigner {
	return &Assigner{now: now, newID: newID}
}

// AssignOnCreate fills the slug, every section and lesson id, and
// publishedAt for a course that has never been saved.
func (a *Assigner) AssignOnCreate(c *models.Course) error {
	if c.Title == "" {
		return apperr.Invalid("title", "is required")
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Title)
	}
	if c.Slug == "" {
		return apperr.Invalid("slug", "cannot be derived from title")
	}

	sections, err := a.assignSections(c.Sections, nil)
	if err != nil {
		return err
	}
	c.Sections = sections

	c.PublishedAt = nil
	if c.IsPublished {
		now := a.now().UTC()
		c.PublishedAt = &now
	}
	return nil
}

// AssignOnUpdate does the same for an edit of prev. An explicit slug is kept
// as submitted; publishedAt is inherited from prev and only set when the
// course is published for the first time.
func (a *Assigner) AssignOnUpdate(c *models.Course, prev models.Course) error {
	if c.Title == "" {
		c.Title = prev.Title
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Title)
	}
	if c.Slug == "" {
		c.Slug = prev.Slug
	}

	sections, err := a.assignSections(c.Sections, prev.Sections)
	if err != nil {
		return err
	}
	c.Sections = sections

	c.PublishedAt = prev.PublishedAt
	if c.IsPublished && c.PublishedAt == nil {
		now := a.now().UTC()
		c.PublishedAt = &now
	}
	return nil
}

func (a *Assigner) assignSections(next, prev []models.Section) ([]models.Section, error) {
	claimedSections := map[string]bool{}
	claimedLessons := map[string]bool{}
	for _, s := range next {
		if s.ID != "" {
			if claimedSections[s.ID] {
				return nil, apperr.Invalid("sections", "duplicate section id "+s.ID)
			}
			claimedSections[s.ID] = true
		}
		for _, l := range s.Lessons {
			if l.ID == "" {
				continue
			}
			if claimedLessons[l.ID] {
				return nil, apperr.Invalid("lessons", "duplicate lesson id "+l.ID)
			}
			claimedLessons[l.ID] = true
		}
	}

	prevByID := make(map[string]models.Section, len(prev))
	for _, s := range prev {
		prevByID[s.ID] = s
	}

	out := make([]models.Section, len(next))
	for i, s := range next {
		if s.Title == "" {
			return nil, apperr.Invalid("sections", "section title is required")
		}
		if s.ID == "" {
			s.ID = a.inherit(prevSectionID(prev, i), claimedSections)
		}
		lessons, err := a.assignLessons(s.Lessons, prevByID[s.ID].Lessons, claimedLessons)
		if err != nil {
			return nil, err
		}
		s.Lessons = lessons
		out[i] = s
	}
	return out, nil
}

func (a *Assigner) assignLessons(next, prev []models.Lesson, claimed map[string]bool) ([]models.Lesson, error) {
	out := make([]models.Lesson, len(next))
	for i, l := range next {
		if l.Title == "" {
			return nil, apperr.Invalid("lessons", "lesson title is required")
		}
		if l.ID == "" {
			candidate := ""
			if i < len(prev) {
				candidate = prev[i].ID
			}
			l.ID = a.inherit(candidate, claimed)
		}
		out[i] = l
	}
	return out, nil
}

// inherit returns candidate when it is free, otherwise a fresh id. Either
// way the result is marked as claimed.
func (a *Assigner) inherit(candidate string, claimed map[string]bool) string {
	id := candidate
	if id == "" || claimed[id] {
		id = a.newID()
	}
	claimed[id] = true
	return id
}

func prevSectionID(prev []models.Section, i int) string {
	if i < len(prev) {
		return prev[i].ID
	}
	return ""
}

// TagSlug derives a tag slug. Tags follow their title: the slug is
// recomputed whenever the title is set.
func TagSlug(t *models.Tag) error {
	if t.Title == "" {
		return apperr.Invalid("title", "is required")
	}
	t.Slug = Slugify(t.Title)
	if t.Slug == "" {
		return apperr.Invalid("slug", "cannot be derived from title")
	}
	return nil
}
