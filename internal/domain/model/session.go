package model

import "time"

// Status is the lifecycle state of a dashboard session.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// Theme is the dashboard color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether th is a known theme.
func (th Theme) Valid() bool { return th == ThemeLight || th == ThemeDark }

// NotificationKind is the severity of a transient message.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyInfo    NotificationKind = "info"
	NotifyError   NotificationKind = "error"
)

// Notification is a transient message shown once to the user.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
}

// FetchJob asks a worker to fetch and filter data for a session generation.
type FetchJob struct {
	SessionID  string
	Generation uint64
	Criteria   FilterCriteria
	Enqueued   time.Time
}
