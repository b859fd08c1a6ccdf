package audit

// Event names the kind of decision an entry records.
type Event string

const (
	EventConstraintCheck   Event = "constraint_check"
	EventAssessmentCreated Event = "assessment_created"
	EventStatusChanged     Event = "status_changed"
	EventConstraintsLoaded Event = "constraints_loaded"
)

// Entry is one line in the hash-chained JSONL audit log.
// Fields are fixed struct members so json.Marshal output, and therefore the
// chain hash, is deterministic.
type Entry struct {
	Timestamp       string `json:"ts"`
	Event           Event  `json:"event"`
	Actor           string `json:"actor,omitempty"`
	Subject         string `json:"subject"`
	Decision        string `json:"decision"`
	Reason          string `json:"reason,omitempty"`
	RiskScore       int    `json:"risk_score,omitempty"`
	ConstraintsHash string `json:"constraints_hash"`
	PrevHash        string `json:"prev_hash"`
}

// Decisions recorded for constraint checks.
const (
	DecisionPassed   = "passed"
	DecisionFailed   = "failed"
	DecisionShutdown = "shutdown"
)
