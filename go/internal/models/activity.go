package models

// ActivityStatus defines the lifecycle of an activity (the event a console
// is driving).
type ActivityStatus int

const (
	ActivityStatusNotStarted ActivityStatus = 0
	ActivityStatusOngoing    ActivityStatus = 1
	ActivityStatusEnded      ActivityStatus = 2
)

// Activity is the activity detail returned by the console API.
type Activity struct {
	ID     ID             `json:"id"`
	Name   string         `json:"name,omitempty"`
	Status ActivityStatus `json:"status"`
}

// IsOngoing reports whether the activity is currently running.
func (a Activity) IsOngoing() bool {
	return a.Status == ActivityStatusOngoing
}
