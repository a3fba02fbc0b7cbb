package syncer

import (
	"errors"
	"fmt"
)

var ErrPassInProgress = errors.New("sync pass already in progress")

// SyncError aborts a pass. Stage names the step that failed.
type SyncError struct {
	Stage          string
	SubscriptionID string
	Err            error
}

func (e *SyncError) Error() string {
	if e.SubscriptionID != "" {
		return fmt.Sprintf("sync failed at %s (%s): %v", e.Stage, e.SubscriptionID, e.Err)
	}
	return fmt.Sprintf("sync failed at %s: %v", e.Stage, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
