package ports

// Notifier defines the interface for alerting moderators about reports
// that need attention.
type Notifier interface {
	// NotifyAutoHidden fires when a report crosses the flag threshold
	// and is hidden automatically.
	NotifyAutoHidden(alert AutoHideAlert) error

	// NotifyFlagged fires for each community flag on a visible report.
	NotifyFlagged(alert FlagAlert) error
}

// Notification data structures

type AutoHideAlert struct {
	ReportID   string
	Tag        string
	Summary    string
	FlagCount  int
	Confidence int
}

type FlagAlert struct {
	ReportID  string
	Reason    string
	Details   string
	FlagCount int
}
