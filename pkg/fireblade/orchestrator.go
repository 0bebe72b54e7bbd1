package fireblade

import (
	"context"
	"sync"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
	"github.com/fireblade-network/fireblade/pkg/metrics"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// DefaultConcurrency is the number of devices worked on at once.
const DefaultConcurrency = 50

// DeviceFunc produces the outcome for one device. Driver.Drive is one.
type DeviceFunc func(ctx context.Context, host string) outcome.Outcome

// Sink receives outcomes one at a time, in completion order.
type Sink interface {
	Write(o outcome.Outcome) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(o outcome.Outcome) error

func (f SinkFunc) Write(o outcome.Outcome) error { return f(o) }

// Orchestrator fans a DeviceFunc out over a device list with bounded
// concurrency and collects the outcomes into a Report.
//
// Sinks are called from a single collector goroutine, never concurrently.
type Orchestrator struct {
	Operation string
	Limit     int
	Sinks     []Sink
	Metrics   *metrics.Metrics
}

// Run calls fn once per device and waits for all of them. The report holds
// exactly len(devices) outcomes.
func (o *Orchestrator) Run(ctx context.Context, devices []string, fn DeviceFunc) *Report {
	limit := o.Limit
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	report := NewReport(o.Operation)
	util.WithOperation(o.Operation).Infof("running on %d devices, %d at a time", len(devices), limit)

	results := make(chan outcome.Outcome)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for res := range results {
			report.Add(res)
			for _, s := range o.Sinks {
				if err := s.Write(res); err != nil {
					util.WithDevice(res.Device).Warnf("writing outcome: %v", err)
				}
			}
		}
	}()

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for _, host := range devices {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			sem <- struct{}{}
			res := call(ctx, host, fn)
			<-sem
			results <- res
		}(host)
	}
	wg.Wait()
	close(results)
	<-collected

	report.Finish()
	o.Metrics.ObserveRun(report.Elapsed())
	return report
}

// call runs fn, turning a panic into a protocol error so the device still
// gets its outcome.
func call(ctx context.Context, host string, fn DeviceFunc) (res outcome.Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			util.WithDevice(host).Errorf("device task panicked: %v", r)
			res = outcome.FromError(host, outcome.Unknown(r))
			res.Duration = time.Since(start)
		}
		if res.Category == "" {
			res = outcome.NewProtocolError(host, "device task returned no outcome")
		}
		if res.Device == "" {
			res.Device = host
		}
	}()
	return fn(ctx, host)
}
