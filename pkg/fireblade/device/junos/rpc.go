package junos

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
)

// RPC bodies used by the transport.
const (
	rpcLock         = `<lock><target><candidate/></target></lock>`
	rpcUnlock       = `<unlock><target><candidate/></target></unlock>`
	rpcDiff         = `<get-configuration compare="rollback" rollback="0" format="text"/>`
	rpcCommitCheck  = `<commit-configuration><check/></commit-configuration>`
	rpcCommit       = `<commit-configuration/>`
	rpcRollback     = `<load-configuration rollback="0"/>`
	rpcSoftwareInfo = `<get-software-information/>`
)

// loadRPC loads one configuration statement in set format.
func loadRPC(directive, format string) string {
	if format == "" {
		format = "set"
	}
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(directive))
	if format == "set" {
		return `<load-configuration action="set" format="text"><configuration-set>` +
			buf.String() + `</configuration-set></load-configuration>`
	}
	return fmt.Sprintf(`<load-configuration action="merge" format="%s"><configuration-text>%s</configuration-text></load-configuration>`,
		format, buf.String())
}

// commitRPC builds a commit-configuration request for opts.
func commitRPC(opts device.CommitOptions) string {
	switch {
	case opts.AtTime != "":
		var buf bytes.Buffer
		xml.EscapeText(&buf, []byte(opts.AtTime))
		return `<commit-configuration><at-time>` + buf.String() + `</at-time></commit-configuration>`
	case opts.ConfirmMinutes > 0:
		return fmt.Sprintf(`<commit-configuration><confirmed/><confirm-timeout>%d</confirm-timeout></commit-configuration>`,
			opts.ConfirmMinutes)
	}
	return rpcCommit
}

// elementText returns the character data of the first element named name
// anywhere in data.
func elementText(data, name string) string {
	d := xml.NewDecoder(strings.NewReader(data))
	capture := false
	var sb strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return strings.TrimSpace(sb.String())
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == name {
				capture = true
			}
		case xml.EndElement:
			if capture && t.Name.Local == name {
				return strings.TrimSpace(sb.String())
			}
		case xml.CharData:
			if capture {
				sb.Write(t)
			}
		}
	}
}

// parseSoftwareInfo extracts facts from a get-software-information reply.
func parseSoftwareInfo(data string) device.Facts {
	return device.Facts{
		Hostname: elementText(data, "host-name"),
		Model:    strings.ToUpper(elementText(data, "product-model")),
		Version:  elementText(data, "junos-version"),
	}
}

// parseDiff extracts the configuration-output text of a compare request.
// A whitespace-only diff is no diff.
func parseDiff(data string) string {
	out := elementText(data, "configuration-output")
	if out == "" {
		return ""
	}
	return out + "\n"
}
