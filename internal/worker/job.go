package worker

import (
	"time"
)

// Trigger asks the run loop for one cleanup run.
type Trigger struct {
	Reason string // "schedule", "startup", "reload"
	At     time.Time
}
