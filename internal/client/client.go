// Package client talks to a remote sentinel gRPC server.
package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/sentinel/internal/constraint"
	"github.com/ppiankov/sentinel/internal/model"
	"github.com/ppiankov/sentinel/internal/rpc"
	"github.com/ppiankov/sentinel/internal/service"
)

// FailClosedID is the constraint id reported when Check cannot reach the
// server.
const FailClosedID = "failclosed.unreachable"

const callTimeout = 5 * time.Second

// Client connects to a sentinel gRPC server.
type Client struct {
	conn *grpc.ClientConn
	now  func() time.Time
}

// New creates a gRPC client for addr.
// Fail-closed: if the server cannot be reached, Check reports a critical
// violation.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sentinel server: %w", err)
	}
	return &Client{conn: conn, now: time.Now}, nil
}

// Check asks the server to evaluate action.
// Fail-closed: any RPC error yields a failed result with one critical
// violation.
func (c *Client) Check(action, actionContext, actor string) (model.ConstraintCheckResult, error) {
	var res model.ConstraintCheckResult
	err := c.invoke(rpc.MethodCheck, rpc.CheckRequest{Action: action, Context: actionContext, Actor: actor}, &res)
	if err != nil {
		now := c.now().UTC()
		return model.ConstraintCheckResult{
			Passed: false,
			Violations: []model.ConstraintViolation{{
				ConstraintID:   FailClosedID,
				ConstraintName: "Server unreachable",
				Severity:       model.LevelCritical,
				Reason:         fmt.Sprintf("sentinel server unreachable: %v", err),
				DetectedAt:     now,
				Context:        actionContext,
			}},
			Timestamp: now,
		}, nil
	}
	if res.Violations == nil {
		res.Violations = []model.ConstraintViolation{}
	}
	return res, nil
}

// Report returns the server's full compliance report for action.
func (c *Client) Report(action, actionContext, actor string) (constraint.Report, error) {
	var out constraint.Report
	err := c.invoke(rpc.MethodReport, rpc.CheckRequest{Action: action, Context: actionContext, Actor: actor}, &out)
	return out, err
}

// Constraints returns the server's active constraint set.
func (c *Client) Constraints() (rpc.ConstraintsResponse, error) {
	var out rpc.ConstraintsResponse
	err := c.invoke(rpc.MethodConstraints, rpc.Empty{}, &out)
	return out, err
}

// Assess creates an assessment on the server.
func (c *Client) Assess(ident model.ThreatIdentification, operator string, save bool) (*service.AssessResult, error) {
	var out service.AssessResult
	if err := c.invoke(rpc.MethodAssess, rpc.AssessRequest{Identification: ident, Operator: operator, Save: save}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a stored assessment.
func (c *Client) Get(id string) (*model.RiskAssessment, error) {
	var out model.RiskAssessment
	if err := c.invoke(rpc.MethodGet, rpc.IDRequest{ID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns every stored assessment.
func (c *Client) List() ([]*model.RiskAssessment, error) {
	var out rpc.ListResponse
	if err := c.invoke(rpc.MethodList, rpc.Empty{}, &out); err != nil {
		return nil, err
	}
	return out.Assessments, nil
}

// Transition changes the review status of a stored assessment.
func (c *Client) Transition(id string, to model.Status, actor string) (*model.RiskAssessment, error) {
	var out model.RiskAssessment
	if err := c.invoke(rpc.MethodTransition, rpc.TransitionRequest{ID: id, Status: to, Actor: actor}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Score returns the derived risk of a stored assessment.
func (c *Client) Score(id string) (service.Score, error) {
	var out service.Score
	err := c.invoke(rpc.MethodScore, rpc.IDRequest{ID: id}, &out)
	return out, err
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(method string, req, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	in, err := rpc.Encode(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, rpc.FullMethod(method), in, resp); err != nil {
		return err
	}
	return rpc.Decode(resp, out)
}
