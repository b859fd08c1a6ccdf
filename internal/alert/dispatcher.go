package alert

import (
	"context"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

const sendTimeout = 15 * time.Second

type route struct {
	events []EventType
	name   string
	sink   Sink
}

// Dispatcher fans events out to every destination subscribed to their type.
// A nil *Dispatcher drops everything, so callers need not nil-check.
type Dispatcher struct {
	routes []route
	logger    *zap.Logger
	onFailure func(Event, error)
	wg        sync.WaitGroup
}

// NewDispatcher builds sinks for configs. It returns nil, nil when configs
// is empty.
func NewDispatcher(configs []Config, logger *zap.Logger) (*Dispatcher, error) {
	if len(configs) == 0 {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{logger: logger}
	for _, cfg := range configs {
		var sink Sink
		if cfg.Format == FormatNATS {
			n, err := DialNATS(cfg)
			if err != nil {
				d.Close()
				return nil, err
			}
			sink = n
		} else {
			sink = NewWebhook(cfg)
		}
		d.routes = append(d.routes, route{events: cfg.Events, name: cfg.Format + " " + cfg.URL, sink: sink})
	}
	return d, nil
}

// Add subscribes sink to events. Used for sinks built outside configs.
func (d *Dispatcher) Add(name string, sink Sink, events ...EventType) {
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	d.routes = append(d.routes, route{events: events, name: name, sink: sink})
}

// OnFailure registers fn to be called after each failed delivery.
func (d *Dispatcher) OnFailure(fn func(Event, error)) {
	if d == nil {
		return
	}
	d.onFailure = fn
}

// Dispatch sends event to every matching sink in the background and
// returns immediately. Failures are logged.
func (d *Dispatcher) Dispatch(event Event) {
	if d == nil {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	}
	for _, r := range d.routes {
		if !matches(r.events, event.Type) {
			continue
		}
		d.wg.Add(1)
		go func(r route) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := r.sink.Send(ctx, event); err != nil {
				d.logger.Warn("alert delivery failed",
					zap.String("sink", r.name),
					zap.String("type", string(event.Type)),
					zap.Error(err))
				if d.onFailure != nil {
					d.onFailure(event, err)
				}
				return
			}
			d.logger.Debug("alert delivered", zap.String("sink", r.name), zap.String("type", string(event.Type)))
		}(r)
	}
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// Close waits for in-flight deliveries and closes sinks that hold
// connections.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.wg.Wait()
	var firstErr error
	for _, r := range d.routes {
		if c, ok := r.sink.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func matches(events []EventType, t EventType) bool {
	for _, e := range events {
		if e == t {
			return true
		}
	}
	return false
}
