package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/sentinel/internal/assessment"
	"github.com/ppiankov/sentinel/internal/constraint"
	"github.com/ppiankov/sentinel/internal/model"
)

// --- Input/Output types ---

// CheckInput defines parameters for the sentinel_check and sentinel_report tools.
type CheckInput struct {
	Action  string `json:"action" jsonschema:"description of the proposed action"`
	Context string `json:"context,omitempty" jsonschema:"circumstances that may qualify for a constraint exception"`
}

// CheckOutput contains the constraint decision.
type CheckOutput struct {
	Passed         bool            `json:"passed"`
	ShouldShutdown bool            `json:"should_shutdown"`
	Violations     []ViolationItem `json:"violations"`
	Summary        string          `json:"summary"`
}

// ViolationItem describes one violated constraint.
type ViolationItem struct {
	ConstraintID   string `json:"constraint_id"`
	ConstraintName string `json:"constraint_name"`
	Severity       string `json:"severity"`
	Reason         string `json:"reason"`
	Recommendation string `json:"recommendation,omitempty"`
}

// ReportOutput is a compliance report.
type ReportOutput struct {
	Passed               bool            `json:"passed"`
	ShouldShutdown       bool            `json:"should_shutdown"`
	Summary              string          `json:"summary"`
	Violations           []ViolationItem `json:"violations"`
	SuggestedAlternative string          `json:"suggested_alternative,omitempty"`
}

// ConstraintsInput is empty.
type ConstraintsInput struct{}

// ConstraintsOutput lists the active constraint set.
type ConstraintsOutput struct {
	Hash        string           `json:"hash"`
	Constraints []ConstraintItem `json:"constraints"`
}

// ConstraintItem describes one active constraint.
type ConstraintItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Level       string   `json:"level"`
	Triggers    []string `json:"triggers"`
	Exceptions  []string `json:"exceptions,omitempty"`
}

// AssessInput defines parameters for the sentinel_assess tool.
type AssessInput struct {
	WhoAtRisk       []string `json:"who_at_risk" jsonschema:"people or groups at risk"`
	HarmType        string   `json:"harm_type" jsonschema:"physical-violence, self-harm, psychological-abuse, neglect, exploitation, property-damage or other"`
	HarmDescription string   `json:"harm_description,omitempty" jsonschema:"free-text description of the threat"`
	TimeFrame       string   `json:"time_frame" jsonschema:"imminent, near-term, medium-term or long-term"`
	Operator        string   `json:"operator" jsonschema:"person responsible for the assessment"`
	Save            bool     `json:"save,omitempty" jsonschema:"store the assessment for review"`
}

// AssessOutput summarises a new assessment.
type AssessOutput struct {
	ID             string       `json:"id"`
	Status         string       `json:"status"`
	Probability    string       `json:"probability"`
	Severity       string       `json:"severity"`
	Uncertainty    string       `json:"uncertainty"`
	Rationale      string       `json:"rationale"`
	Options        []OptionItem `json:"options"`
	Recommendation string       `json:"recommendation,omitempty"`
	Flags          []FlagItem   `json:"flags"`
	RiskScore      int          `json:"risk_score"`
	RiskLevel      string       `json:"risk_level"`
	Saved          bool         `json:"saved"`
}

// OptionItem describes one intervention option.
type OptionItem struct {
	ID                  string   `json:"id"`
	Description         string   `json:"description"`
	Effectiveness       string   `json:"effectiveness"`
	Collateral          string   `json:"collateral"`
	Legal               string   `json:"legal"`
	Reversible          bool     `json:"reversible"`
	RequiresApproval    bool     `json:"requires_approval"`
	ViolatesConstraints bool     `json:"violates_constraints"`
	Risks               []string `json:"risks"`
}

// FlagItem describes one assessment flag.
type FlagItem struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// IDInput names a stored assessment.
type IDInput struct {
	ID string `json:"id" jsonschema:"assessment id"`
}

// ScoreOutput is the derived risk of an assessment.
type ScoreOutput struct {
	ID        string `json:"id"`
	RiskScore int    `json:"risk_score"`
	RiskLevel string `json:"risk_level"`
}

// TransitionInput defines parameters for the sentinel_transition tool.
type TransitionInput struct {
	ID     string `json:"id" jsonschema:"assessment id"`
	Status string `json:"status" jsonschema:"target status"`
	Actor  string `json:"actor" jsonschema:"reviewer making the change"`
}

// TransitionOutput confirms the status change.
type TransitionOutput struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ListInput is empty.
type ListInput struct{}

// ListOutput lists stored assessments.
type ListOutput struct {
	Assessments []ListItem `json:"assessments"`
}

// ListItem describes a single stored assessment.
type ListItem struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	HarmType       string `json:"harm_type"`
	Recommendation string `json:"recommendation,omitempty"`
	RiskScore      int    `json:"risk_score"`
	CreatedBy      string `json:"created_by"`
	CreatedAt      string `json:"created_at"`
}

// --- Handlers ---

func (s *Server) handleCheck(ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	res, err := s.svc.Check(ctx, s.actor, input.Action, input.Context)
	if err != nil {
		return nil, CheckOutput{}, err
	}
	out := CheckOutput{
		Passed:         res.Passed,
		ShouldShutdown: constraint.ShouldShutdown(res),
		Violations:     make([]ViolationItem, 0, len(res.Violations)),
		Summary:        constraint.FormatCheckResult(res),
	}
	for _, v := range res.Violations {
		out.Violations = append(out.Violations, ViolationItem{
			ConstraintID:   v.ConstraintID,
			ConstraintName: v.ConstraintName,
			Severity:       string(v.Severity),
			Reason:         v.Reason,
		})
	}
	if out.ShouldShutdown {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleReport(ctx context.Context, _ *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, ReportOutput, error) {
	rep, err := s.svc.Report(ctx, s.actor, input.Action, input.Context)
	if err != nil {
		return nil, ReportOutput{}, err
	}
	out := ReportOutput{
		Passed:               rep.Passed,
		ShouldShutdown:       rep.ShouldShutdown,
		Summary:              rep.Summary,
		Violations:           make([]ViolationItem, 0, len(rep.Violations)),
		SuggestedAlternative: rep.SuggestedAlternative,
	}
	for _, v := range rep.Violations {
		out.Violations = append(out.Violations, ViolationItem{
			ConstraintID:   v.ConstraintID,
			ConstraintName: v.ConstraintName,
			Severity:       string(v.Severity),
			Reason:         v.Reason,
			Recommendation: v.Recommendation,
		})
	}
	return nil, out, nil
}

func (s *Server) handleConstraints(_ context.Context, _ *mcpsdk.CallToolRequest, _ ConstraintsInput) (*mcpsdk.CallToolResult, ConstraintsOutput, error) {
	set := s.svc.Constraints()
	out := ConstraintsOutput{Hash: set.Hash()}
	for _, c := range set.Constraints() {
		out.Constraints = append(out.Constraints, ConstraintItem{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Level:       string(c.Level),
			Triggers:    c.TriggerPhrases,
			Exceptions:  c.Exceptions,
		})
	}
	return nil, out, nil
}

func (s *Server) handleAssess(ctx context.Context, _ *mcpsdk.CallToolRequest, input AssessInput) (*mcpsdk.CallToolResult, AssessOutput, error) {
	ident := model.ThreatIdentification{
		WhoAtRisk:       input.WhoAtRisk,
		HarmType:        model.HarmType(input.HarmType),
		HarmDescription: input.HarmDescription,
		TimeFrame:       model.TimeFrame(input.TimeFrame),
	}
	res, err := s.svc.Assess(ctx, ident, input.Operator, input.Save)
	if err != nil {
		return nil, AssessOutput{}, err
	}
	return nil, assessOutput(res.Assessment, res.RiskScore, string(res.RiskLevel), res.Saved), nil
}

func assessOutput(a *model.RiskAssessment, score int, level string, saved bool) AssessOutput {
	out := AssessOutput{
		ID:          a.ID,
		Status:      string(a.Status),
		Probability: string(a.Estimate.Probability),
		Severity:    string(a.Estimate.Severity),
		Uncertainty: string(a.Estimate.Uncertainty),
		Rationale:   a.Estimate.RationaleBrief,
		Options:     make([]OptionItem, 0, len(a.Options)),
		Flags:       make([]FlagItem, 0, len(a.Flags)),
		RiskScore:   score,
		RiskLevel:   level,
		Saved:       saved,
	}
	if a.Recommendation != nil {
		out.Recommendation = string(*a.Recommendation)
	}
	for _, o := range a.Options {
		out.Options = append(out.Options, OptionItem{
			ID:                  string(o.ID),
			Description:         o.Description,
			Effectiveness:       string(o.EstimatedEffectiveness),
			Collateral:          string(o.CollateralImpact),
			Legal:               string(o.LegalStatus),
			Reversible:          o.IsReversible,
			RequiresApproval:    o.RequiresApproval,
			ViolatesConstraints: o.ViolatesConstraints,
			Risks:               o.Risks,
		})
	}
	for _, f := range a.Flags {
		out.Flags = append(out.Flags, FlagItem{Type: string(f.Type), Severity: string(f.Severity), Message: f.Message})
	}
	return out
}

func (s *Server) handleScore(ctx context.Context, _ *mcpsdk.CallToolRequest, input IDInput) (*mcpsdk.CallToolResult, ScoreOutput, error) {
	sc, err := s.svc.Score(ctx, input.ID)
	if err != nil {
		return nil, ScoreOutput{}, err
	}
	return nil, ScoreOutput{ID: sc.ID, RiskScore: sc.RiskScore, RiskLevel: string(sc.RiskLevel)}, nil
}

func (s *Server) handleTransition(ctx context.Context, _ *mcpsdk.CallToolRequest, input TransitionInput) (*mcpsdk.CallToolResult, TransitionOutput, error) {
	a, err := s.svc.Transition(ctx, input.ID, model.Status(input.Status), input.Actor)
	if err != nil {
		return nil, TransitionOutput{}, err
	}
	return nil, TransitionOutput{ID: a.ID, Status: string(a.Status)}, nil
}

func (s *Server) handleList(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListInput) (*mcpsdk.CallToolResult, ListOutput, error) {
	list, err := s.svc.List(ctx)
	if err != nil {
		return nil, ListOutput{}, err
	}
	items := make([]ListItem, 0, len(list))
	for _, a := range list {
		item := ListItem{
			ID:        a.ID,
			Status:    string(a.Status),
			HarmType:  string(a.Identification.HarmType),
			RiskScore: assessment.CalculateRiskScore(a),
			CreatedBy: a.CreatedBy,
			CreatedAt: a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if a.Recommendation != nil {
			item.Recommendation = string(*a.Recommendation)
		}
		items = append(items, item)
	}
	return nil, ListOutput{Assessments: items}, nil
}
