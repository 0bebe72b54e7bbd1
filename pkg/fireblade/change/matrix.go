package change

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fireblade-network/fireblade/pkg/util"
)

// VLANChange moves one access interface from one VLAN to another.
type VLANChange struct {
	Host      string
	Interface string
	OldVLAN   string
	NewVLAN   string
}

// Directives returns the delete-then-set pair for the change.
func (c VLANChange) Directives() []string {
	path := fmt.Sprintf("interfaces %s unit 0 family ethernet-switching vlan members", c.Interface)
	return []string{
		fmt.Sprintf("delete %s %s", path, c.OldVLAN),
		fmt.Sprintf("set %s %s", path, c.NewVLAN),
	}
}

// Matrix groups VLAN change directives by host, in first-seen order.
type Matrix struct {
	Hosts      []string
	Directives map[string][]string
	// Malformed holds lines that were skipped.
	Malformed []string
}

// ParseMatrix reads "host,interface,old-vlan,new-vlan" lines. Blank lines
// and lines starting with '#' are ignored, duplicate lines are applied once,
// and lines without exactly four non-empty fields are recorded as malformed.
func ParseMatrix(r io.Reader) (*Matrix, error) {
	m := &Matrix{Directives: make(map[string][]string)}
	seen := make(map[string]bool)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true

		c, ok := parseChange(line)
		if !ok {
			util.Warnf("skipping malformed matrix line: %s", line)
			m.Malformed = append(m.Malformed, line)
			continue
		}
		if _, exists := m.Directives[c.Host]; !exists {
			m.Hosts = append(m.Hosts, c.Host)
		}
		m.Directives[c.Host] = append(m.Directives[c.Host], c.Directives()...)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseMatrixFile reads a matrix from path.
func ParseMatrixFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &util.ListFileError{Path: path, Err: err}
	}
	defer f.Close()

	m, err := ParseMatrix(f)
	if err != nil {
		return nil, &util.ListFileError{Path: path, Err: err}
	}
	if len(m.Hosts) == 0 {
		return nil, &util.ListFileError{Path: path, Err: util.ErrEmptyList}
	}
	return m, nil
}

func parseChange(line string) (VLANChange, bool) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return VLANChange{}, false
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
		if fields[i] == "" {
			return VLANChange{}, false
		}
	}
	return VLANChange{Host: fields[0], Interface: fields[1], OldVLAN: fields[2], NewVLAN: fields[3]}, true
}
