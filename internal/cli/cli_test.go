package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sentinel/internal/audit"
	"github.com/ppiankov/sentinel/internal/config"
	"github.com/ppiankov/sentinel/internal/model"
	"github.com/ppiankov/sentinel/internal/service"
	"github.com/ppiankov/sentinel/internal/store"
)

// testCommand returns a command whose output goes to buf.
func testCommand(t *testing.T, buf *bytes.Buffer) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	cmd.SetOut(buf)
	return cmd
}

// useTempConfig points the package config at a fresh directory.
func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	c := config.Default()
	c.Constraints = filepath.Join(dir, "constraints.yaml")
	c.AuditLog = filepath.Join(dir, "audit.jsonl")
	c.Store = config.StoreConfig{Driver: store.DriverFile, Path: filepath.Join(dir, "assessments")}

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return dir
}

// captureExit replaces exitFor for the duration of a test.
func captureExit(t *testing.T) *model.ConstraintCheckResult {
	t.Helper()
	got := &model.ConstraintCheckResult{}
	prev := exitFor
	exitFor = func(r model.ConstraintCheckResult) { *got = r }
	t.Cleanup(func() { exitFor = prev })
	return got
}

func writeIdent(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "ident.yaml")
	content := "whoAtRisk: [Dana]\nharmType: neglect\nharmDescription: Elderly neighbour not seen for days\ntimeFrame: near-term\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCheckJSON(t *testing.T) {
	useTempConfig(t)
	exited := captureExit(t)
	checkFormat, checkServer, checkContext = "json", "", ""
	defer func() { checkFormat = "text" }()

	var buf bytes.Buffer
	if err := runCheck(testCommand(t, &buf), []string{"Stab", "the", "tyres"}); err != nil {
		t.Fatalf("runCheck: %v", err)
	}

	var res model.ConstraintCheckResult
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, buf.String())
	}
	if res.Passed || res.Violations[0].Severity != model.LevelCritical {
		t.Fatalf("expected critical violation, got %+v", res)
	}
	if exited.Passed || len(exited.Violations) == 0 {
		t.Fatal("expected exit handler to receive the failed result")
	}
}

func TestRunCheckAudited(t *testing.T) {
	dir := useTempConfig(t)
	captureExit(t)
	checkFormat, checkServer, checkActor = "text", "", "tester"

	var buf bytes.Buffer
	if err := runCheck(testCommand(t, &buf), []string{"Call the family doctor"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "PASSED") {
		t.Fatalf("expected PASSED, got %q", buf.String())
	}

	if v := audit.Verify(filepath.Join(dir, "audit.jsonl")); !v.Valid || v.Lines != 1 {
		t.Fatalf("expected one verified audit entry, got %+v", v)
	}
}

func TestRunReport(t *testing.T) {
	useTempConfig(t)
	checkFormat, checkServer, checkContext = "text", "", ""

	var buf bytes.Buffer
	if err := runReport(testCommand(t, &buf), []string{"read messages on her phone"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Suggested alternative:") {
		t.Fatalf("expected suggested alternative, got:\n%s", buf.String())
	}
}

func TestAssessSubmitApprove(t *testing.T) {
	dir := useTempConfig(t)
	assessFile = writeIdent(t, dir)
	assessOperator, assessSave, assessAdvise, assessFormat = "op-1", true, false, "json"
	defer func() { assessSave, assessFormat = false, "text" }()

	var buf bytes.Buffer
	if err := runAssess(testCommand(t, &buf), nil); err != nil {
		t.Fatalf("runAssess: %v", err)
	}
	var res service.AssessResult
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, buf.String())
	}
	if !res.Saved || res.Assessment.Status != model.StatusDraft {
		t.Fatalf("expected saved draft, got %+v", res)
	}
	id := res.Assessment.ID

	reviewActor = "reviewer"
	for _, to := range []model.Status{model.StatusPendingApproval, model.StatusApproved} {
		buf.Reset()
		if err := runTransition(testCommand(t, &buf), id, to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
		if !strings.Contains(buf.String(), string(to)) {
			t.Fatalf("unexpected output %q", buf.String())
		}
	}
	if err := runTransition(testCommand(t, nil), id, model.StatusRejected); err == nil {
		t.Fatal("approved → rejected must fail")
	}

	buf.Reset()
	reviewFormat = "text"
	if err := runList(testCommand(t, &buf), nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), id) || !strings.Contains(buf.String(), "approved") {
		t.Fatalf("list output missing assessment:\n%s", buf.String())
	}

	buf.Reset()
	if err := runScore(testCommand(t, &buf), []string{id}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), id+": ") {
		t.Fatalf("unexpected score output %q", buf.String())
	}
}

func TestAssessTextOutput(t *testing.T) {
	dir := useTempConfig(t)
	assessFile = writeIdent(t, dir)
	assessOperator, assessSave, assessAdvise, assessFormat = "op-1", false, false, "text"

	var buf bytes.Buffer
	if err := runAssess(testCommand(t, &buf), nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"At risk:   Dana", "Options:", "monitor", "Recommendation:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "assessments")); !os.IsNotExist(err) {
		t.Error("unsaved assess must not create the store")
	}
}

func TestAssessRejectsInvalidIdentification(t *testing.T) {
	dir := useTempConfig(t)
	path := filepath.Join(dir, "bad.yaml")
	os.WriteFile(path, []byte("whoAtRisk: []\nharmType: neglect\ntimeFrame: near-term\n"), 0o600)
	assessFile, assessOperator, assessSave = path, "op", false

	err := runAssess(testCommand(t, nil), nil)
	if err == nil || !strings.Contains(err.Error(), "whoAtRisk") {
		t.Fatalf("expected whoAtRisk validation error, got %v", err)
	}
}

func TestAuditTail(t *testing.T) {
	dir := useTempConfig(t)
	captureExit(t)
	checkFormat, checkServer = "text", ""
	runCheck(testCommand(t, nil), []string{"hack the router"})

	tailLines, tailSubject, tailEvent, tailSince, tailFormat = 10, "", "", 0, "text"
	var buf bytes.Buffer
	if err := runAuditTail(testCommand(t, &buf), []string{filepath.Join(dir, "audit.jsonl")}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "constraint_check") || !strings.Contains(buf.String(), "1 failed") {
		t.Fatalf("unexpected timeline:\n%s", buf.String())
	}
}

func TestRunConstraintsYAML(t *testing.T) {
	useTempConfig(t)
	constraintsFormat = "yaml"
	defer func() { constraintsFormat = "text" }()

	var buf bytes.Buffer
	if err := runConstraints(testCommand(t, &buf), nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "id: no-violence") {
		t.Fatalf("expected YAML constraint list, got:\n%s", buf.String())
	}
}
