//go:build integration

package publish

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fireblade-network/fireblade/internal/testutil"
	"github.com/fireblade-network/fireblade/pkg/fireblade/outcome"
)

func TestRedisSinkWrite(t *testing.T) {
	addr := testutil.SkipIfNoRedis(t)

	runID := fmt.Sprintf("it-%d", time.Now().UnixNano())
	stream := "fireblade:test:" + runID
	s := NewRedisSink(addr, runID, "config").WithStream(stream)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	t.Cleanup(func() {
		client.Del(context.Background(), stream, s.RunKey())
	})

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	for _, o := range []outcome.Outcome{
		outcome.NewNoDifference("a"),
		outcome.NewCommitted("b", "+ set x", "commit complete"),
		outcome.NewNoDifference("c"),
	} {
		if err := s.Write(o); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	n, err := client.XLen(context.Background(), stream).Result()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("stream length = %d, want 3", n)
	}

	counts, err := s.Tallies()
	if err != nil {
		t.Fatalf("Tallies() error = %v", err)
	}
	if counts["no-difference"] != 2 || counts["committed"] != 1 || counts["total"] != 3 {
		t.Errorf("Tallies() = %v", counts)
	}
}
