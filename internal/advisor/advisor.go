// Package advisor asks a Bedrock-hosted model to rank the options of an
// assessment. Model output is untrusted: it is parsed into typed
// suggestions, checked against the assessment and the constraint set, and
// never changes the assessment itself.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.uber.org/zap"

	"github.com/ppiankov/sentinel/internal/constraint"
	"github.com/ppiankov/sentinel/internal/model"
)

// ErrMalformedReply is returned when the model reply cannot be turned into
// valid suggestions.
var ErrMalformedReply = errors.New("advisor: malformed model reply")

const (
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 600
)

// Converser is the subset of the Bedrock runtime client the advisor uses.
type Converser interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Settings configures a Bedrock advisor.
type Settings struct {
	Region          string
	ModelID         string
	AccessKeyID     string
	SecretAccessKey string
}

// Suggestion is one ranked option. A rationale that fails the constraint
// check is withheld: Rationale is cleared and Withheld is set.
type Suggestion struct {
	Rank       int                         `json:"rank"`
	OptionID   model.OptionID              `json:"optionId"`
	Rationale  string                      `json:"rationale,omitempty"`
	Withheld   bool                        `json:"withheld,omitempty"`
	Violations []model.ConstraintViolation `json:"violations,omitempty"`
}

// Advisor requests and validates option rankings.
type Advisor struct {
	client  Converser
	modelID string
	timeout time.Duration
	logger  *zap.Logger
}

// New builds an Advisor on the AWS default config chain. Static keys in s
// take precedence over the environment.
func New(ctx context.Context, s Settings, logger *zap.Logger) (*Advisor, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(s.Region)}
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("advisor: load aws config: %w", err)
	}
	return NewWithClient(bedrockruntime.NewFromConfig(cfg), s.ModelID, logger), nil
}

// NewWithClient builds an Advisor on an existing client.
func NewWithClient(client Converser, modelID string, logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{client: client, modelID: modelID, timeout: defaultTimeout, logger: logger}
}

const systemPrompt = `You review intervention options produced by a risk assessment tool.
Rank the options from most to least appropriate. You may only rank the option ids you are given.
Prefer the least invasive option that protects the people at risk. Never suggest actions outside the listed options.

Return ONLY valid JSON, no markdown fences, no commentary:
{"ranking":[{"optionId":"<id>","rationale":"<one sentence>"}]}`

// Review asks the model to rank a's options and validates the reply.
func (a *Advisor) Review(ctx context.Context, checker *constraint.Checker, ra *model.RiskAssessment) ([]Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt, err := buildPrompt(ra)
	if err != nil {
		return nil, err
	}

	out, err := a.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(a.modelID),
		System:  []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: systemPrompt}},
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(defaultMaxTokens),
			Temperature: aws.Float32(0),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("advisor: converse: %w", err)
	}

	text := replyText(out)
	a.logger.Debug("advisor reply", zap.String("assessment", ra.ID), zap.Int("bytes", len(text)))

	suggestions, err := ParseSuggestions(text, ra)
	if err != nil {
		return nil, err
	}
	return screen(checker, suggestions), nil
}

func buildPrompt(ra *model.RiskAssessment) (string, error) {
	type promptOption struct {
		ID            model.OptionID      `json:"id"`
		Description   string              `json:"description"`
		Effectiveness model.Effectiveness `json:"effectiveness"`
		Reversible    bool                `json:"reversible"`
		Legal         model.LegalStatus   `json:"legalStatus"`
	}
	opts := make([]promptOption, 0, len(ra.Options))
	for _, o := range ra.Options {
		if o.ViolatesConstraints {
			continue
		}
		opts = append(opts, promptOption{o.ID, o.Description, o.EstimatedEffectiveness, o.IsReversible, o.LegalStatus})
	}
	if len(opts) == 0 {
		return "", fmt.Errorf("advisor: assessment %s has no options that pass the constraint check", ra.ID)
	}

	body, err := json.Marshal(map[string]any{
		"harmType":    ra.Identification.HarmType,
		"timeFrame":   ra.Identification.TimeFrame,
		"probability": ra.Estimate.Probability,
		"severity":    ra.Estimate.Severity,
		"options":     opts,
	})
	if err != nil {
		return "", fmt.Errorf("advisor: encode prompt: %w", err)
	}
	return string(body), nil
}

func replyText(out *bedrockruntime.ConverseOutput) string {
	if out == nil {
		return ""
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			b.WriteString(t.Value)
		}
	}
	return b.String()
}

type rankedOption struct {
	OptionID  string `json:"optionId"`
	Rationale string `json:"rationale"`
}

// ParseSuggestions converts a model reply into suggestions for ra. Every
// option id must name a constraint-passing option of ra, at most once, with
// a non-empty rationale. Both {"ranking":[...]} and a bare array are
// accepted.
func ParseSuggestions(raw string, ra *model.RiskAssessment) ([]Suggestion, error) {
	raw = cleanJSON(raw)

	var ranked []rankedOption
	var wrapped struct {
		Ranking []rankedOption `json:"ranking"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.Ranking != nil {
		ranked = wrapped.Ranking
	} else if err := json.Unmarshal([]byte(raw), &ranked); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedReply, truncate(raw, 200))
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: empty ranking", ErrMalformedReply)
	}

	seen := make(map[model.OptionID]bool, len(ranked))
	out := make([]Suggestion, 0, len(ranked))
	for i, r := range ranked {
		id := model.OptionID(strings.TrimSpace(r.OptionID))
		opt := ra.Option(id)
		if opt == nil {
			return nil, fmt.Errorf("%w: unknown option %q", ErrMalformedReply, r.OptionID)
		}
		if opt.ViolatesConstraints {
			return nil, fmt.Errorf("%w: option %q violates constraints", ErrMalformedReply, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: option %q ranked twice", ErrMalformedReply, id)
		}
		seen[id] = true

		rationale := strings.TrimSpace(r.Rationale)
		if rationale == "" {
			return nil, fmt.Errorf("%w: option %q has no rationale", ErrMalformedReply, id)
		}
		out = append(out, Suggestion{Rank: i + 1, OptionID: id, Rationale: rationale})
	}
	return out, nil
}

func screen(checker *constraint.Checker, suggestions []Suggestion) []Suggestion {
	for i := range suggestions {
		res := checker.Check(suggestions[i].Rationale, "")
		if !res.Passed {
			suggestions[i].Rationale = ""
			suggestions[i].Withheld = true
			suggestions[i].Violations = res.Violations
		}
	}
	return suggestions
}

func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
