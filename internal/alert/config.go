package alert

// Formats accepted in Config.Format.
const (
	FormatGeneric   = "generic"
	FormatSlack     = "slack"
	FormatPagerDuty = "pagerduty"
	FormatNATS      = "nats"
)

// Config defines one alert destination. For the nats format URL is the
// server URL and Subject the subject to publish on.
type Config struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"`
	Events  []EventType       `yaml:"events"  json:"events"`
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`
	Subject string            `yaml:"subject" json:"subject,omitempty"`
}

// EventType names the condition that raised an alert.
type EventType string

const (
	// EventShutdown is raised when a check reports a critical violation.
	EventShutdown EventType = "shutdown"
	// EventCriticalFlag is raised when an assessment carries a critical flag.
	EventCriticalFlag EventType = "critical_flag"
	// EventRiskCritical is raised when an assessment scores in the critical band.
	EventRiskCritical EventType = "risk_critical"
)

// Event is the payload delivered to every sink.
type Event struct {
	Timestamp       string    `json:"timestamp"`
	Type            EventType `json:"type"`
	Subject         string    `json:"subject"`
	Severity        string    `json:"severity"`
	Reason          string    `json:"reason"`
	RiskScore       int       `json:"risk_score,omitempty"`
	ConstraintsHash string    `json:"constraints_hash,omitempty"`
}
