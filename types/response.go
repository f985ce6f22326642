package types

import "time"

// DetailResponse is the error body returned by the remote authority
type DetailResponse struct {
	Detail string `json:"detail"`
}

// Severity tells the rendering layer how to style a notice
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is a user-visible message surfaced by a component.
// DismissAfter is zero for notices that stay until replaced.
type Notice struct {
	Message      string        `json:"message"`
	Severity     Severity      `json:"severity"`
	DismissAfter time.Duration `json:"dismiss_after,omitempty"`
}

// NewNotice creates a sticky notice
func NewNotice(severity Severity, message string) *Notice {
	return &Notice{Message: message, Severity: severity}
}

// NewToast creates a notice that the view auto-dismisses
func NewToast(severity Severity, message string, dismissAfter time.Duration) *Notice {
	return &Notice{Message: message, Severity: severity, DismissAfter: dismissAfter}
}
