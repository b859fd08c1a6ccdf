// Package server exposes a Service over gRPC and hot-reloads the
// constraint file while serving.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/sentinel/internal/model"
	"github.com/ppiankov/sentinel/internal/rpc"
	"github.com/ppiankov/sentinel/internal/service"
	"github.com/ppiankov/sentinel/internal/store"
)

// Config holds gRPC server configuration.
type Config struct {
	Port            int
	ConstraintsPath string
	Logger          *zap.Logger
}

// Server implements sentinel.v1.SentinelService.
type Server struct {
	svc        *service.Service
	cfg        Config
	logger     *zap.Logger
	grpcServer *grpc.Server
}

// sentinelServer is the handler type checked by grpc.RegisterService.
type sentinelServer interface {
	service() *service.Service
}

// New creates a gRPC server over svc.
func New(svc *service.Service, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, cfg: cfg, logger: logger}
	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logCalls))
	s.grpcServer.RegisterService(&serviceDesc, s)
	return s
}

func (s *Server) service() *service.Service { return s.svc }

// Serve listens on the configured port. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return s.ServeOn(lis)
}

// ServeOn serves on lis. Blocks until stopped.
func (s *Server) ServeOn(lis net.Listener) error {
	s.logger.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// GracefulStop stops accepting calls and waits for in-flight ones.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// ReloadConstraints re-reads the constraint file. Called by the Reloader.
func (s *Server) ReloadConstraints() error {
	return s.svc.ReloadConstraints(s.cfg.ConstraintsPath, "reloader")
}

func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		s.logger.Warn("grpc call failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug("grpc call", fields...)
	}
	return resp, err
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		code = codes.InvalidArgument
	case errors.Is(err, store.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, store.ErrExists):
		code = codes.AlreadyExists
	case errors.Is(err, store.ErrInvalidTransition):
		code = codes.FailedPrecondition
	case errors.Is(err, service.ErrNoStore), errors.Is(err, service.ErrNoAdvisor):
		code = codes.Unimplemented
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

type unaryFunc func(ctx context.Context, svc *service.Service, in *structpb.Struct) (any, error)

func unary(name string, fn unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := func(ctx context.Context, req any) (any, error) {
				out, err := fn(ctx, srv.(sentinelServer).service(), req.(*structpb.Struct))
				if err != nil {
					return nil, toStatus(err)
				}
				resp, err := rpc.Encode(out)
				if err != nil {
					return nil, status.Error(codes.Internal, err.Error())
				}
				return resp, nil
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: rpc.FullMethod(name)}
			return interceptor(ctx, in, info, call)
		},
	}
}

func decode(in *structpb.Struct, v any) error {
	if err := rpc.Decode(in, v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	return nil
}
