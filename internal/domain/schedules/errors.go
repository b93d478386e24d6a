package schedules

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("schedule not found")

type ConflictRole string

const (
	RoleInstructor ConflictRole = "instructor"
	RoleResource   ConflictRole = "resource"
)

// ConflictError reports an instructor or resource double-booking. Role
// distinguishes which assignment collided.
type ConflictError struct {
	Role           ConflictRole
	SubjectId      uuid.UUID
	ConflictingIds []uuid.UUID
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %s already has a schedule overlapping the requested window", e.Role, e.SubjectId)
}

type AvailabilityError struct {
	InstructorId uuid.UUID
	Instant      time.Time
	Blackout     bool
}

func (e AvailabilityError) Error() string {
	if e.Blackout {
		return fmt.Sprintf("instructor %s has a blackout on %s", e.InstructorId, e.Instant.Format("2006-01-02"))
	}
	return fmt.Sprintf("instructor %s is not available at %s", e.InstructorId, e.Instant.Format(time.RFC3339))
}

type ErrInvalid struct {
	Reason string
}

func (e ErrInvalid) Error() string {
	return "invalid schedule: " + e.Reason
}
