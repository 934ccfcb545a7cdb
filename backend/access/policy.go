// Package access decides who may read or change which records.
//
// Evaluate is pure: it returns an unconditional Allow or Deny, or a row
// Filter that the persistence layer applies identically to list and
// single-record queries. Rules are checked in a fixed order and the first
// matching rule wins.
package access

import (
	"academy/backend/apperr"
	"academy/backend/models"
)

type Resource string

const (
	ResourceMedia      Resource = "media"
	ResourceEnrollment Resource = "enrollments"
	ResourceCourse     Resource = "courses"
	ResourceTag        Resource = "tags"
	ResourcePurchase   Resource = "course-purchases"
	ResourceUser       Resource = "users"
	ResourceJob        Resource = "jobs"
)

type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Column names used in row filters.
const (
	FieldID         = "id"
	FieldUserID     = "user_id"
	FieldVisibility = "visibility"
	FieldUploadedBy = "uploaded_by_id"
)

type Effect int

const (
	Deny Effect = iota
	Allow
	RowFilter
)

func (e Effect) String() string {
	switch e {
	case Allow:
		return "allow"
	case RowFilter:
		return "filter"
	default:
		return "deny"
	}
}

type Decision struct {
	Effect Effect
	Filter Filter
}

var (
	allow = Decision{Effect: Allow}
	deny  = Decision{Effect: Deny}
)

func filtered(f Filter) Decision {
	return Decision{Effect: RowFilter, Filter: f}
}

// Permits reports whether a record passes the decision.
func (d Decision) Permits(record map[string]any) bool {
	switch d.Effect {
	case Allow:
		return true
	case RowFilter:
		return d.Filter.Matches(record)
	default:
		return false
	}
}

// Evaluate applies the access rules for principal p acting on resource r.
func Evaluate(p Principal, r Resource, op Operation) Decision {
	if p.IsAdmin() {
		return allow
	}
	authenticated := p.UserID != 0

	switch r {
	case ResourceMedia:
		switch op {
		case OpRead:
			public := Equals(FieldVisibility, string(models.VisibilityPublic))
			if authenticated {
				return filtered(AnyOf(public, Equals(FieldUploadedBy, p.UserID)))
			}
			return filtered(public)
		case OpCreate:
			if authenticated {
				return allow
			}
			return deny
		default:
			if authenticated {
				return filtered(Equals(FieldUploadedBy, p.UserID))
			}
			return deny
		}

	case ResourceEnrollment:
		if op == OpRead && authenticated {
			return filtered(Equals(FieldUserID, p.UserID))
		}
		return deny

	case ResourceCourse, ResourceTag:
		if op == OpRead {
			return allow
		}
		return deny

	case ResourcePurchase:
		if op == OpRead && authenticated {
			return filtered(Equals(FieldUserID, p.UserID))
		}
		return deny

	case ResourceUser:
		switch op {
		case OpCreate:
			return allow
		case OpRead, OpUpdate:
			if authenticated {
				return filtered(Equals(FieldID, p.UserID))
			}
		}
		return deny
	}
	return deny
}

// Authorize is Evaluate with Deny converted to apperr.ErrUnauthorized, so
// callers can reject before touching any state.
func Authorize(p Principal, r Resource, op Operation) (Decision, error) {
	d := Evaluate(p, r, op)
	if d.Effect == Deny {
		return d, apperr.ErrUnauthorized
	}
	return d, nil
}
