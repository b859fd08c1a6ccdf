package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/sentinel/internal/advisor"
	"github.com/ppiankov/sentinel/internal/alert"
	"github.com/ppiankov/sentinel/internal/audit"
	"github.com/ppiankov/sentinel/internal/config"
	"github.com/ppiankov/sentinel/internal/constraint"
	"github.com/ppiankov/sentinel/internal/metrics"
	"github.com/ppiankov/sentinel/internal/service"
	"github.com/ppiankov/sentinel/internal/store"
)

// runtime is a Service together with the resources it owns.
type runtime struct {
	svc     *service.Service
	store   store.Store
	audit   *audit.Log
	alerts  *alert.Dispatcher
	metrics *metrics.Metrics
}

type runtimeOptions struct {
	store   bool
	metrics bool
}

// openRuntime builds a Service from cfg. The store is opened only when
// asked for, so read-only commands never create it.
func openRuntime(ctx context.Context, c *config.Config, opts runtimeOptions) (*runtime, error) {
	if c == nil {
		c = config.Default()
	}
	set, err := constraint.LoadSet(c.Constraints)
	if err != nil {
		return nil, err
	}

	rt := &runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	if c.AuditLog != "" {
		if rt.audit, err = audit.Open(c.AuditLog); err != nil {
			return nil, err
		}
	}
	if opts.store {
		if rt.store, err = store.Open(c.Store.Driver, c.Store.ResolvedPath()); err != nil {
			return nil, err
		}
	}
	if rt.alerts, err = alert.NewDispatcher(c.Alerts, logger.Named("alert")); err != nil {
		return nil, err
	}
	if opts.metrics {
		rt.metrics = metrics.New()
	}

	svcOpts := service.Options{
		Audit:   rt.audit,
		Alerts:  rt.alerts,
		Metrics: rt.metrics,
		Logger:  logger.Named("service"),
	}
	if rt.store != nil {
		svcOpts.Store = rt.store
	}
	if c.Advisor.Enabled {
		adv, err := advisor.New(ctx, advisor.Settings{
			Region:          c.Advisor.Region,
			ModelID:         c.Advisor.ModelID,
			AccessKeyID:     c.Advisor.AccessKeyID,
			SecretAccessKey: c.Advisor.SecretAccessKey,
		}, logger.Named("advisor"))
		if err != nil {
			return nil, fmt.Errorf("failed to create advisor: %w", err)
		}
		svcOpts.Advisor = adv
	}

	rt.svc = service.New(set, svcOpts)
	logger.Debug("runtime ready",
		zap.String("constraints", c.Constraints),
		zap.String("constraints_hash", set.Hash()),
		zap.Bool("store", rt.store != nil),
		zap.Bool("advisor", c.Advisor.Enabled))
	ok = true
	return rt, nil
}

// Close waits for pending alerts and releases files.
func (rt *runtime) Close() {
	if err := rt.alerts.Close(); err != nil {
		logger.Warn("alert shutdown failed", zap.Error(err))
	}
	if rt.store != nil {
		rt.store.Close()
	}
	if rt.audit != nil {
		rt.audit.Close()
	}
}
