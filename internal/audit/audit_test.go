package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	return l, path
}

func checkEntry(decision string) Entry {
	return Entry{
		Event:           EventConstraintCheck,
		Actor:           "op-1",
		Subject:         "alert the authorities",
		Decision:        decision,
		ConstraintsHash: "sha256:abc123",
	}
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestSequentialWritesProduceValidChain(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 5; i++ {
		if err := l.Record(checkEntry(DecisionPassed)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	l.Close()

	res := Verify(path)
	if !res.Valid || res.Lines != 5 {
		t.Fatalf("expected valid 5-line chain, got %+v", res)
	}
}

func TestFirstEntryUsesGenesisHash(t *testing.T) {
	l, path := newTestLog(t)
	l.Record(checkEntry(DecisionPassed))
	l.Close()

	var e Entry
	json.Unmarshal([]byte(readLines(t, path)[0]), &e)
	if e.PrevHash != GenesisHash {
		t.Fatalf("expected genesis hash, got %s", e.PrevHash)
	}
	if _, err := time.Parse(TimestampFormat, e.Timestamp); err != nil {
		t.Fatalf("expected timestamp to be filled, got %q", e.Timestamp)
	}
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		l.Record(checkEntry(DecisionShutdown))
	}
	l.Close()

	lines := readLines(t, path)
	lines[1] = strings.Replace(lines[1], `"shutdown"`, `"passed"`, 1)
	writeLines(t, path, lines)

	res := Verify(path)
	if res.Valid || res.ErrorLine != 3 {
		t.Fatalf("expected break at line 3, got %+v", res)
	}
}

func TestVerifyDetectsDeletedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		l.Record(checkEntry(DecisionPassed))
	}
	l.Close()

	lines := readLines(t, path)
	writeLines(t, path, []string{lines[0], lines[2]})

	res := Verify(path)
	if res.Valid || res.ErrorLine != 2 {
		t.Fatalf("expected break at line 2, got %+v", res)
	}
}

func TestVerifyDetectsInsertedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		l.Record(checkEntry(DecisionPassed))
	}
	l.Close()

	lines := readLines(t, path)
	fake := checkEntry(DecisionPassed)
	fake.PrevHash = "sha256:fake"
	raw, _ := json.Marshal(fake)
	writeLines(t, path, []string{lines[0], string(raw), lines[1], lines[2]})

	if res := Verify(path); res.Valid {
		t.Fatal("expected chain with inserted entry to be invalid")
	}
}

func TestVerifyReportsParseErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	writeLines(t, path, []string{"{not json"})

	res := Verify(path)
	if res.Valid || res.ErrorLine != 1 || !strings.Contains(res.Error, "parse error") {
		t.Fatalf("expected parse error at line 1, got %+v", res)
	}
}

func TestEmptyLogIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	os.WriteFile(path, nil, 0o600)

	if res := Verify(path); !res.Valid || res.Lines != 0 {
		t.Fatalf("expected empty log to be valid, got %+v", res)
	}
}

func TestConcurrentWritesSerialize(t *testing.T) {
	l, path := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(checkEntry(DecisionPassed))
		}()
	}
	wg.Wait()
	l.Close()

	if res := Verify(path); !res.Valid || res.Lines != 50 {
		t.Fatalf("expected valid 50-line chain, got %+v", res)
	}
}

func TestReopenContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.jsonl")
	for round := 0; round < 2; round++ {
		l, err := Open(path)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 3; i++ {
			l.Record(checkEntry(DecisionPassed))
		}
		l.Close()
	}

	if res := Verify(path); !res.Valid || res.Lines != 6 {
		t.Fatalf("expected valid 6-line chain after reopen, got %+v", res)
	}
}

func TestHashLine(t *testing.T) {
	h := HashLine([]byte(`{"event":"constraint_check"}`))
	if h != HashLine([]byte(`{"event":"constraint_check"}`)) {
		t.Fatal("expected deterministic hash")
	}
	if !strings.HasPrefix(h, "sha256:") || len(h) != 7+64 {
		t.Fatalf("unexpected hash format %q", h)
	}
	if h == HashLine([]byte(`{"event":"status_changed"}`)) {
		t.Fatal("expected different inputs to hash differently")
	}
}

func TestQueryFiltersAndSummarizes(t *testing.T) {
	l, path := newTestLog(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	stamp := func(m int) string { return base.Add(time.Duration(m) * time.Minute).Format(TimestampFormat) }

	l.Record(Entry{Timestamp: stamp(0), Event: EventConstraintCheck, Subject: "kill", Decision: DecisionShutdown})
	l.Record(Entry{Timestamp: stamp(1), Event: EventConstraintCheck, Subject: "track", Decision: DecisionFailed})
	l.Record(Entry{Timestamp: stamp(2), Event: EventAssessmentCreated, Subject: "a-1", Decision: "alert", RiskScore: 75})
	l.Record(Entry{Timestamp: stamp(3), Event: EventStatusChanged, Subject: "a-1", Decision: "pending-approval"})
	l.Record(Entry{Timestamp: stamp(4), Event: EventStatusChanged, Subject: "a-2", Decision: "pending-approval"})
	l.Close()

	res, err := Query(path, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	s := res.Summary
	if s.Total != 5 || s.Checks != 2 || s.Failed != 2 || s.Shutdowns != 1 ||
		s.Assessments != 1 || s.Transitions != 2 || s.MaxRisk != 75 {
		t.Fatalf("unexpected summary %+v", s)
	}

	res, _ = Query(path, Filter{Subject: "a-1"})
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries for a-1, got %d", len(res.Entries))
	}

	res, _ = Query(path, Filter{Event: EventStatusChanged, Limit: 1})
	if len(res.Entries) != 1 || res.Entries[0].Subject != "a-2" {
		t.Fatalf("expected last status change, got %+v", res.Entries)
	}

	res, _ = Query(path, Filter{From: base.Add(time.Minute), To: base.Add(2 * time.Minute)})
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries in window, got %d", len(res.Entries))
	}
}

func TestFormatTimeline(t *testing.T) {
	res := &QueryResult{
		Entries: []Entry{{Timestamp: "2026-05-01T12:00:00.000Z", Event: EventAssessmentCreated, Subject: "a-1", Decision: "alert", RiskScore: 75}},
		Summary: Summary{Total: 1, Assessments: 1, MaxRisk: 75, First: "2026-05-01T12:00:00.000Z", Last: "2026-05-01T12:00:00.000Z"},
	}
	out := FormatTimeline(res)
	for _, want := range []string{"2026-05-01 12:00:00", "assessment_created", "ALERT", "risk=75", "1 assessments"} {
		if !strings.Contains(out, want) {
			t.Errorf("timeline missing %q:\n%s", want, out)
		}
	}
	if FormatTimeline(&QueryResult{}) != "No audit entries found.\n" {
		t.Error("unexpected empty timeline")
	}
}
