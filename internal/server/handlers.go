package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/sentinel/internal/rpc"
	"github.com/ppiankov/sentinel/internal/service"
)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: rpc.ServiceName,
	HandlerType: (*sentinelServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(rpc.MethodCheck, check),
		unary(rpc.MethodReport, report),
		unary(rpc.MethodConstraints, constraints),
		unary(rpc.MethodAssess, assess),
		unary(rpc.MethodGet, getAssessment),
		unary(rpc.MethodList, listAssessments),
		unary(rpc.MethodTransition, transition),
		unary(rpc.MethodScore, score),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sentinel/v1/sentinel.proto",
}

func actorOr(actor, fallback string) string {
	if actor == "" {
		return fallback
	}
	return actor
}

func check(ctx context.Context, svc *service.Service, in *structpb.Struct) (any, error) {
	var req rpc.CheckRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return svc.Check(ctx, actorOr(req.Actor, "grpc"), req.Action, req.Context)
}

func report(ctx context.Context, svc *service.Service, in *structpb.Struct) (any, error) {
	var req rpc.CheckRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return svc.Report(ctx, actorOr(req.Actor, "grpc"), req.Action, req.Context)
}

func constraints(_ context.Context, svc *service.Service, _ *structpb.Struct) (any, error) {
	set := svc.Constraints()
	return rpc.ConstraintsResponse{Hash: set.Hash(), Constraints: set.Constraints()}, nil
}

func assess(ctx context.Context, svc *service.Service, in *structpb.Struct) (any, error) {
	var req rpc.AssessRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return svc.Assess(ctx, req.Identification, req.Operator, req.Save)
}

func getAssessment(ctx context.Context, svc *service.Service, in *structpb.Struct) (any, error) {
	var req rpc.IDRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return svc.Get(ctx, req.ID)
}

func listAssessments(ctx context.Context, svc *service.Service, _ *structpb.Struct) (any, error) {
	list, err := svc.List(ctx)
	if err != nil {
		return nil, err
	}
	return rpc.ListResponse{Assessments: list}, nil
}

func transition(ctx context.Context, svc *service.Service, in *structpb.Struct) (any, error) {
	var req rpc.TransitionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return svc.Transition(ctx, req.ID, req.Status, req.Actor)
}

func score(ctx context.Context, svc *service.Service, in *structpb.Struct) (any, error) {
	var req rpc.IDRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return svc.Score(ctx, req.ID)
}
