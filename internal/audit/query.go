package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Filter selects entries from a log. Zero fields match everything.
type Filter struct {
	Subject string
	Event   Event
	From    time.Time
	To      time.Time
	// Limit keeps only the last Limit matches when positive.
	Limit int
}

// Summary counts decisions across a set of entries.
type Summary struct {
	Total       int    `json:"total"`
	Checks      int    `json:"checks"`
	Failed      int    `json:"failed"`
	Shutdowns   int    `json:"shutdowns"`
	Assessments int    `json:"assessments"`
	Transitions int    `json:"transitions"`
	MaxRisk     int    `json:"max_risk"`
	First       string `json:"first,omitempty"`
	Last        string `json:"last,omitempty"`
}

// QueryResult holds matching entries and their summary.
type QueryResult struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Query reads the log at path and returns the entries that match filter.
// Malformed lines are skipped; use Verify to detect them.
func Query(path string, filter Filter) (*QueryResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open log: %w", err)
	}
	defer f.Close()

	var matched []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if filter.match(e) {
			matched = append(matched, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("audit: read log: %w", err)
	}

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[len(matched)-filter.Limit:]
	}

	res := &QueryResult{Entries: matched}
	for _, e := range matched {
		res.Summary.add(e)
	}
	return res, nil
}

func (f Filter) match(e Entry) bool {
	if f.Subject != "" && e.Subject != f.Subject {
		return false
	}
	if f.Event != "" && e.Event != f.Event {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

func (s *Summary) add(e Entry) {
	s.Total++
	switch e.Event {
	case EventConstraintCheck:
		s.Checks++
		switch e.Decision {
		case DecisionFailed:
			s.Failed++
		case DecisionShutdown:
			s.Failed++
			s.Shutdowns++
		}
	case EventAssessmentCreated:
		s.Assessments++
	case EventStatusChanged:
		s.Transitions++
	}
	if e.RiskScore > s.MaxRisk {
		s.MaxRisk = e.RiskScore
	}
	if s.First == "" {
		s.First = e.Timestamp
	}
	s.Last = e.Timestamp
}
