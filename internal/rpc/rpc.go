// Package rpc defines the sentinel gRPC wire contract. Messages travel as
// google.protobuf.Struct values whose fields mirror the JSON shape of the
// Go request and response types below, so no generated code is needed on
// either side.
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/sentinel/internal/constraint"
	"github.com/ppiankov/sentinel/internal/model"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "sentinel.v1.SentinelService"

// Method names.
const (
	MethodCheck       = "Check"
	MethodReport      = "Report"
	MethodConstraints = "Constraints"
	MethodAssess      = "Assess"
	MethodGet         = "GetAssessment"
	MethodList        = "ListAssessments"
	MethodTransition  = "Transition"
	MethodScore       = "Score"
)

// FullMethod returns the "/service/method" path for m.
func FullMethod(m string) string {
	return "/" + ServiceName + "/" + m
}

// CheckRequest is the input of Check and Report.
type CheckRequest struct {
	Action  string `json:"action"`
	Context string `json:"context,omitempty"`
	Actor   string `json:"actor,omitempty"`
}

// ConstraintsResponse lists the active constraint set.
type ConstraintsResponse struct {
	Hash        string                  `json:"hash"`
	Constraints []constraint.Constraint `json:"constraints"`
}

// AssessRequest is the input of Assess.
type AssessRequest struct {
	Identification model.ThreatIdentification `json:"identification"`
	Operator       string                     `json:"operator"`
	Save           bool                       `json:"save,omitempty"`
}

// IDRequest names one stored assessment.
type IDRequest struct {
	ID string `json:"id"`
}

// ListResponse holds stored assessments.
type ListResponse struct {
	Assessments []*model.RiskAssessment `json:"assessments"`
}

// TransitionRequest is the input of Transition.
type TransitionRequest struct {
	ID     string       `json:"id"`
	Status model.Status `json:"status"`
	Actor  string       `json:"actor"`
}

// Empty is the input of parameterless methods.
type Empty struct{}

// Encode converts v to a Struct through its JSON form. v must encode as a
// JSON object.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("rpc: %T is not a JSON object: %w", v, err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("rpc: build struct: %w", err)
	}
	return s, nil
}

// Decode fills v from s.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("rpc: marshal struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpc: decode %T: %w", v, err)
	}
	return nil
}
