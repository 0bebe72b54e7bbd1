package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/fireblade-network/fireblade/internal/testutil"
	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
)

const mixedChassis = `
fpc0:
--------------------------------------------------------------------------
Preprovisioned Virtual Chassis
Virtual Chassis ID: 2b1c.a6e4.2f0c
Virtual Chassis Mode: Enabled
                                                Mstr           Mixed Route Neighbor List
Member ID  Status   Serial No    Model          prio  Role      Mode  Mode ID  Interface
0 (FPC 0)  Prsnt    PE3714100218 ex4300-48p     129   Master*      N  VC   1  vcp-255/1/0
1 (FPC 1)  Prsnt    PE3714100331 ex4300-48mp    129   Backup       N  VC   0  vcp-255/1/0
2 (FPC 2)  Prsnt    PE3714100440 ex4300-48p       0   Linecard     N  VC   1  vcp-255/1/1
`

const singleChassis = `
Member ID  Status   Serial No    Model          prio  Role      Mode  Mode ID  Interface
0 (FPC 0)  Prsnt    PE3714100218 ex4300-48p     129   Master*      N  VC   1  vcp-255/1/0
1 (FPC 1)  Prsnt    PE3714100219 ex4300-48p     129   Backup       N  VC   0  vcp-255/1/0
`

func TestParseHostname(t *testing.T) {
	tests := []struct {
		host, campus, role string
	}{
		{"bby-brh7046-ext-1.managenet.sfu.ca", "bby", "ext"},
		{"SRY-GALLERIA-CORE-2", "sry", "core"},
		{"van-hc1500-dist-10.example.net", "van", "dist"},
		{"10.0.0.1", "", ""},
		{"switch1", "", ""},
	}
	for _, tt := range tests {
		campus, role := ParseHostname(tt.host)
		if campus != tt.campus || role != tt.role {
			t.Errorf("ParseHostname(%q) = %q, %q; want %q, %q", tt.host, campus, role, tt.campus, tt.role)
		}
	}
}

func TestParseMembers(t *testing.T) {
	members, err := ParseMembers(mixedChassis)
	if err != nil {
		t.Fatalf("ParseMembers() error = %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("got %d members, want 3: %+v", len(members), members)
	}
	want := device.Member{ID: "0", Status: "Prsnt", Model: device.ModelEX4300P, Role: "Master"}
	if members[0] != want {
		t.Errorf("members[0] = %+v, want %+v", members[0], want)
	}
	if members[1].Model != device.ModelEX4300MP || members[2].Role != "Linecard" {
		t.Errorf("members = %+v", members)
	}
}

func TestChassisModel(t *testing.T) {
	mixed, _ := ParseMembers(mixedChassis)
	single, _ := ParseMembers(singleChassis)

	tests := []struct {
		name     string
		members  []device.Member
		fallback string
		want     string
	}{
		{"mixed", mixed, "EX4300-48P", device.ModelMixed},
		{"single", single, "", device.ModelEX4300P},
		{"no members", nil, "ex2300-c-12p", "EX2300-C-12P"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChassisModel(tt.members, tt.fallback); got != tt.want {
				t.Errorf("ChassisModel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	ft := testutil.NewFakeTransport("bby-brh7046-ext-1.managenet.sfu.ca")
	ft.CommandOutputs = map[string]string{
		VirtualChassisCommand: testutil.Framed(VirtualChassisCommand, mixedChassis),
	}

	f, err := NewClassifier().Classify(context.Background(), ft, device.Facts{
		Hostname: "bby-brh7046-ext-1",
		Model:    "EX4300-48P",
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if f.Campus != "bby" || f.Role != "ext" || f.Model != device.ModelMixed || len(f.Members) != 3 {
		t.Errorf("Classify() = %+v", f)
	}
	if ids := f.MemberIDs(device.ModelEX4300P); len(ids) != 2 {
		t.Errorf("P members = %v", ids)
	}
}

func TestClassifyErrors(t *testing.T) {
	t.Run("command fails", func(t *testing.T) {
		ft := testutil.NewFakeTransport("sw1")
		ft.CommandErrs = map[string]error{VirtualChassisCommand: errors.New("shell closed")}
		if _, err := NewClassifier().Classify(context.Background(), ft, device.Facts{Hostname: "sw1"}); err == nil {
			t.Error("Classify() should fail")
		}
	})

	t.Run("corrupted", func(t *testing.T) {
		ft := testutil.NewFakeTransport("sw1")
		ft.CommandOutputs = map[string]string{
			VirtualChassisCommand: testutil.Framed(VirtualChassisCommand, "Message from syslogd@sw1 at ..."),
		}
		_, err := NewClassifier().Classify(context.Background(), ft, device.Facts{Hostname: "sw1"})
		if !errors.Is(err, device.ErrCorrupt) {
			t.Errorf("Classify() error = %v, want corrupt", err)
		}
	})

	t.Run("no hostname", func(t *testing.T) {
		ft := testutil.NewFakeTransport("sw1")
		if _, err := NewClassifier().Classify(context.Background(), ft, device.Facts{}); err == nil {
			t.Error("Classify() should fail without a hostname")
		}
	})
}
