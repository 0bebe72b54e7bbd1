package fireblade

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fireblade-network/fireblade/pkg/cli"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
)

// Report aggregates the outcomes of one run.
type Report struct {
	Operation string
	Started   time.Time
	Finished  time.Time

	mu       sync.Mutex
	counts   map[outcome.Category]int
	outcomes []outcome.Outcome
}

// NewReport starts an empty report.
func NewReport(operation string) *Report {
	return &Report{
		Operation: operation,
		Started:   time.Now(),
		counts:    make(map[outcome.Category]int),
	}
}

// Add records one outcome.
func (r *Report) Add(o outcome.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[o.Category]++
	r.outcomes = append(r.outcomes, o)
}

// Finish stamps the end of the run.
func (r *Report) Finish() {
	r.mu.Lock()
	r.Finished = time.Now()
	r.mu.Unlock()
}

// Elapsed returns the run duration, or the time since start if unfinished.
func (r *Report) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Finished.IsZero() {
		return time.Since(r.Started)
	}
	return r.Finished.Sub(r.Started)
}

// Count returns the number of outcomes in category c.
func (r *Report) Count(c outcome.Category) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[c]
}

// Total returns the number of outcomes recorded.
func (r *Report) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

// Failures returns the number of failed devices.
func (r *Report) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for c, count := range r.counts {
		if c.IsFailure() {
			n += count
		}
	}
	return n
}

// Outcomes returns every outcome sorted by device.
func (r *Report) Outcomes() []outcome.Outcome {
	r.mu.Lock()
	out := append([]outcome.Outcome(nil), r.outcomes...)
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Device < out[j].Device })
	return out
}

// ByCategory returns the outcomes in category c, sorted by device.
func (r *Report) ByCategory(c outcome.Category) []outcome.Outcome {
	var out []outcome.Outcome
	for _, o := range r.Outcomes() {
		if o.Category == c {
			out = append(out, o)
		}
	}
	return out
}

// Render writes the category summary followed by the devices that need
// attention (failures and skips) with their detail.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "\n%s: %d devices in %s\n\n", cli.Bold(r.Operation), r.Total(), r.Elapsed().Round(time.Second))

	t := cli.NewTableTo(w, "CATEGORY", "COUNT")
	for _, c := range outcome.Categories {
		n := r.Count(c)
		if n == 0 {
			continue
		}
		t.Row(colorCategory(c), strconv.Itoa(n))
	}
	t.Row("total", strconv.Itoa(r.Total()))
	t.Flush()

	var attention []outcome.Outcome
	for _, o := range r.Outcomes() {
		if o.Category.IsFailure() || o.Category == outcome.Skipped {
			attention = append(attention, o)
		}
	}
	if len(attention) == 0 {
		return
	}

	fmt.Fprintln(w)
	t = cli.NewTableTo(w, "DEVICE", "CATEGORY", "DETAIL")
	for _, o := range attention {
		t.Row(o.Device, colorCategory(o.Category), cli.Truncate(o.Detail, 100))
	}
	t.Flush()
}

func colorCategory(c outcome.Category) string {
	switch {
	case c.IsFailure():
		return cli.Red(string(c))
	case c == outcome.Skipped:
		return cli.Yellow(string(c))
	}
	return cli.Green(string(c))
}
