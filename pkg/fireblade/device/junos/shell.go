package junos

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// These only find the first prompts after login, before the literal shell
// prompt is known.
var (
	cliPrompt   = regexp.MustCompile(`>\s*$`)
	shellPrompt = regexp.MustCompile(`(%|#|\$)\s*$`)
	anyPrompt   = regexp.MustCompile(`(>|%|#|\$)\s*$`)
)

// shell is an interactive Unix shell on the device, entered from the CLI
// with "start shell" when the login class lands in the CLI.
type shell struct {
	session *ssh.Session
	stdin   io.WriteCloser
	chunks  chan []byte
	done    chan struct{}
	pending string
	// prompt is the shell prompt line as first seen, trailing blanks removed.
	prompt string
}

func openShell(ctx context.Context, client *ssh.Client) (*shell, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, err
	}
	modes := ssh.TerminalModes{ssh.ECHO: 1, ssh.TTY_OP_ISPEED: 38400, ssh.TTY_OP_OSPEED: 38400}
	if err := sess.RequestPty("vt100", 0, 512, modes); err != nil {
		sess.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, err
	}
	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	sh := &shell{session: sess, stdin: stdin, chunks: make(chan []byte, 16), done: make(chan struct{})}
	go sh.readLoop(stdout)

	text, err := sh.expect(ctx, anyPrompt.MatchString)
	if err != nil {
		sh.close()
		return nil, err
	}
	if cliPrompt.MatchString(text) {
		if text, err = sh.send(ctx, "start shell", shellPrompt.MatchString); err != nil {
			sh.close()
			return nil, err
		}
	}
	if sh.prompt = promptOf(text); sh.prompt == "" {
		sh.close()
		return nil, fmt.Errorf("no shell prompt in %q", text)
	}
	return sh, nil
}

func lastLine(text string) string {
	return text[strings.LastIndexByte(text, '\n')+1:]
}

func promptOf(text string) string {
	return strings.TrimRight(lastLine(text), " \t")
}

// atPrompt reports whether text ends with the shell prompt alone on its
// line. Output lines that merely end in '%' or '#' do not count.
func (sh *shell) atPrompt(text string) bool {
	return strings.Contains(text, "\n") && promptOf(text) == sh.prompt
}

func (sh *shell) readLoop(r io.Reader) {
	defer close(sh.chunks)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case sh.chunks <- chunk:
			case <-sh.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// run sends a CLI command through "cli -c" and returns the transcript: the
// command echo, the output and the closing prompt.
func (sh *shell) run(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	// the tail of a command that timed out earlier is read and dropped
	if sh.pending != "" {
		if _, err := sh.expect(ctx, sh.atPrompt); err != nil {
			return "", err
		}
	}
	line := fmt.Sprintf(`cli -c "%s | no-more"`, strings.ReplaceAll(command, `"`, `\"`))
	return sh.send(ctx, line, sh.atPrompt)
}

func (sh *shell) send(ctx context.Context, line string, ready func(string) bool) (string, error) {
	if _, err := io.WriteString(sh.stdin, line+"\n"); err != nil {
		return "", err
	}
	return sh.expect(ctx, ready)
}

// expect reads until ready accepts everything read so far.
func (sh *shell) expect(ctx context.Context, ready func(string) bool) (string, error) {
	var sb strings.Builder
	sb.WriteString(sh.pending)
	sh.pending = ""
	for {
		text := strings.ReplaceAll(sb.String(), "\r\n", "\n")
		if ready(text) {
			return text, nil
		}
		select {
		case chunk, ok := <-sh.chunks:
			if !ok {
				return text, io.ErrUnexpectedEOF
			}
			sb.Write(chunk)
		case <-ctx.Done():
			sh.pending = sb.String()
			return text, ctx.Err()
		}
	}
}

func (sh *shell) close() error {
	close(sh.done)
	io.WriteString(sh.stdin, "exit\n")
	return sh.session.Close()
}
