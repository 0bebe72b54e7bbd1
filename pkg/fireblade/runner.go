package fireblade

import (
	"context"
	"fmt"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/metrics"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// Runner turns a resolved RunRequest into a finished Report.
type Runner struct {
	Dialer      device.Dialer
	Credentials CredentialProvider
	Classifier  device.Classifier
	Sinks       []Sink
	Metrics     *metrics.Metrics
}

// Run resolves credentials once, then drives every device in req. Only
// problems that stop the whole run (bad request, no credentials, an
// unwritable summary file) are returned as errors; device failures are in
// the report.
func (r *Runner) Run(ctx context.Context, req *RunRequest) (*Report, error) {
	task, err := req.Task()
	if err != nil {
		return nil, err
	}
	if r.Credentials == nil {
		return nil, util.ErrNoCredentials
	}
	creds, err := r.Credentials.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials: %w", err)
	}

	sinks := append([]Sink(nil), r.Sinks...)
	if req.LogDir != "" {
		sinks = append(sinks, &DeviceLogSink{Dir: req.LogDir, Operation: string(req.Operation)})
	}
	if req.SummaryFile != "" {
		csv, err := OpenCSVSink(req.SummaryFile)
		if err != nil {
			return nil, err
		}
		defer csv.Close()
		sinks = append(sinks, csv)
	}

	driver := &Driver{
		Dialer:      r.Dialer,
		Credentials: creds,
		Options:     device.DialOptions{Port: req.Port, Timeout: req.Timeouts.Open},
		Classifier:  r.Classifier,
		Filter:      req.Filter,
		Task:        task,
		Metrics:     r.Metrics,
	}
	orch := &Orchestrator{
		Operation: task.Name(),
		Limit:     req.Concurrency,
		Sinks:     sinks,
		Metrics:   r.Metrics,
	}

	util.WithOperation(task.Name()).Infof("filter %s, as %s", req.Filter, creds.Username)
	return orch.Run(ctx, req.Devices, driver.Drive), nil
}
