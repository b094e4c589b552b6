package models

import (
	"time"
)

// CallbackEvent is the dead-letter record for webhook deliveries that could
// not be applied: unmatched references, malformed bodies, or a success
// arriving after the payment was already marked FAILED locally. Retained for
// manual reconciliation; never deleted.
type CallbackEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Kind      string    `gorm:"size:20;not null;index" json:"kind"` // UNMATCHED, LATE_SUCCESS, MALFORMED
	Reference string    `gorm:"size:128;index" json:"reference"`    // checkout request id or originator conversation id, if present
	RawBody   string    `gorm:"type:text" json:"raw_body"`
	Note      string    `gorm:"size:255" json:"note"`
	Reviewed  bool      `gorm:"default:false;index" json:"reviewed"`
	CreatedAt time.Time `json:"created_at"`
}

func (CallbackEvent) TableName() string {
	return "callback_events"
}
