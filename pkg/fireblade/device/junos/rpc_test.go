package junos

import (
	"strings"
	"testing"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
)

func TestLoadRPC(t *testing.T) {
	got := loadRPC(`set system login message "a<b"`, "set")
	want := `<load-configuration action="set" format="text"><configuration-set>set system login message &#34;a&lt;b&#34;</configuration-set></load-configuration>`
	if got != want {
		t.Errorf("loadRPC() =\n%s\nwant\n%s", got, want)
	}
	if got := loadRPC("system { host-name sw1; }", "text"); !strings.Contains(got, `format="text"><configuration-text>`) {
		t.Errorf("loadRPC(text) = %s", got)
	}
}

func TestCommitRPC(t *testing.T) {
	tests := []struct {
		name string
		opts device.CommitOptions
		want string
	}{
		{"now", device.CommitOptions{}, `<commit-configuration/>`},
		{"confirmed", device.CommitOptions{ConfirmMinutes: 10}, `<commit-configuration><confirmed/><confirm-timeout>10</confirm-timeout></commit-configuration>`},
		{"at", device.CommitOptions{AtTime: "2026-10-20 02:00"}, `<commit-configuration><at-time>2026-10-20 02:00</at-time></commit-configuration>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commitRPC(tt.opts); got != tt.want {
				t.Errorf("commitRPC() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseSoftwareInfo(t *testing.T) {
	reply := `
<multi-routing-engine-results>
  <multi-routing-engine-item>
    <re-name>fpc0</re-name>
    <software-information>
      <host-name>bby-brh7046-ext-1</host-name>
      <product-model>ex4300-48p</product-model>
      <product-name>ex4300-48p</product-name>
      <junos-version>21.4R3-S5.4</junos-version>
    </software-information>
  </multi-routing-engine-item>
</multi-routing-engine-results>`

	f := parseSoftwareInfo(reply)
	if f.Hostname != "bby-brh7046-ext-1" || f.Model != device.ModelEX4300P || f.Version != "21.4R3-S5.4" {
		t.Errorf("parseSoftwareInfo() = %+v", f)
	}
}

func TestParseDiff(t *testing.T) {
	reply := `<configuration-information><configuration-output>
[edit interfaces ge-0/0/10 unit 0 family ethernet-switching vlan]
-       members DATA;
+       members NAC-UNPRIV;
</configuration-output></configuration-information>`
	got := parseDiff(reply)
	if !strings.HasPrefix(got, "[edit interfaces") || !strings.Contains(got, "+       members NAC-UNPRIV;") {
		t.Errorf("parseDiff() = %q", got)
	}

	empty := "<configuration-information><configuration-output>\n</configuration-output></configuration-information>"
	if got := parseDiff(empty); got != "" {
		t.Errorf("parseDiff(empty) = %q, want empty", got)
	}
}
