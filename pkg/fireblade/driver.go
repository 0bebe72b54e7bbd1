package fireblade

import (
	"context"
	"time"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/fireblade/gate"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
	"github.com/fireblade-network/fireblade/pkg/metrics"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// Driver runs the session lifecycle for one device: open, gate check,
// dispatch, close. Everything it needs is read-only once a run starts, so
// one Driver serves every concurrent device task.
type Driver struct {
	Dialer      device.Dialer
	Credentials device.Credentials
	Options     device.DialOptions
	Classifier  device.Classifier
	Filter      gate.Filter
	Task        Task
	Metrics     *metrics.Metrics
}

// Drive returns exactly one Outcome for host. It never panics and never
// returns with the session open.
func (d *Driver) Drive(ctx context.Context, host string) (o outcome.Outcome) {
	start := time.Now()
	log := util.WithDevice(host)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("task panicked: %v", r)
			o = outcome.FromError(host, outcome.Unknown(r))
		}
		o.Device = host
		o.Duration = time.Since(start)
		log.WithField("category", o.Category).Debugf("done in %s", o.Duration.Round(time.Millisecond))
	}()

	s, err := device.Open(ctx, d.Dialer, host, d.Credentials, d.Options, d.Classifier)
	if err != nil {
		log.Debugf("open: %v", err)
		return outcome.FromError(host, err)
	}
	d.Metrics.SessionOpened()
	defer func() {
		s.Close()
		d.Metrics.SessionClosed()
	}()

	if !d.Filter.IsEmpty() || d.Task.NeedsFacts() {
		facts, err := s.Facts(ctx)
		if err != nil {
			return outcome.FromError(host, err)
		}
		if dec := gate.ShouldAct(facts, d.Filter); !dec.Act {
			log.Infof("skipped: %s", dec.Reason)
			return outcome.NewSkipped(host, dec.Reason)
		}
	}

	return d.Task.Run(ctx, s)
}
