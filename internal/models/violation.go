package models

// Типы нарушений
const (
	ViolationBreakCount      = "break_count"
	ViolationBreakSingle     = "break_single"
	ViolationBreakTotal      = "break_total"
	ViolationTarget          = "target"
	ViolationStatusThreshold = "status_threshold"
)

const (
	LimitMin = "min"
	LimitMax = "max"
)

type Violation struct {
	Type          string `json:"type"`
	StatusCode    string `json:"statusCode,omitempty"`
	StatusLabel   string `json:"statusLabel,omitempty"`
	TriggerAction string `json:"triggerAction"`
	ActualSeconds int64  `json:"actualSeconds"`
	LimitSeconds  int64  `json:"limitSeconds"`
	LimitType     string `json:"limitType"`
	Message       string `json:"message"`
}

// RequiresReason - нарушение блокирует завершение дня без причины
func (v Violation) RequiresReason() bool {
	return v.TriggerAction == TriggerRequireReason
}
