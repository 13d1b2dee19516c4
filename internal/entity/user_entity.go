package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the engine's view of an account. Usage counters live in the
// usage store, not on this row.
type User struct {
	Id                 uuid.UUID
	Email              string
	FullName           string
	SubscriptionTier   string
	SubscriptionStatus string
	LengthPreference   string
	CreatedAt          time.Time
	UpdatedAt          *time.Time
}
