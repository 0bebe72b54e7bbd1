package fireblade

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/fireblade-network/fireblade/pkg/fireblade/device"
	"github.com/fireblade-network/fireblade/pkg/util"
)

// Environment variables read by EnvCredentials.
const (
	EnvUser     = "FIREBLADE_USER"
	EnvPassword = "FIREBLADE_PASSWORD"
)

// CredentialProvider supplies the login for a run. It is called once,
// before any device task starts.
type CredentialProvider interface {
	Credentials(ctx context.Context) (device.Credentials, error)
}

// StaticCredentials returns fixed credentials.
type StaticCredentials device.Credentials

func (c StaticCredentials) Credentials(ctx context.Context) (device.Credentials, error) {
	if c.Username == "" {
		return device.Credentials{}, util.ErrNoCredentials
	}
	return device.Credentials(c), nil
}

// EnvCredentials reads FIREBLADE_USER and FIREBLADE_PASSWORD. Username
// overrides the environment when set.
type EnvCredentials struct {
	Username string
	Getenv   func(string) string
}

func (c EnvCredentials) Credentials(ctx context.Context) (device.Credentials, error) {
	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	user := c.Username
	if user == "" {
		user = getenv(EnvUser)
	}
	pass := getenv(EnvPassword)
	if user == "" || pass == "" {
		return device.Credentials{}, fmt.Errorf("%w: %s and %s must be set", util.ErrNoCredentials, EnvUser, EnvPassword)
	}
	return device.Credentials{Username: user, Password: pass}, nil
}

// PromptCredentials asks on the terminal. The password is read without
// echo.
type PromptCredentials struct {
	Username string
	In       io.Reader
	Out      io.Writer
	// ReadPassword defaults to reading stdin with echo disabled.
	ReadPassword func() ([]byte, error)
}

func (c PromptCredentials) Credentials(ctx context.Context) (device.Credentials, error) {
	in, out := c.In, c.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}

	user := c.Username
	if user == "" {
		fmt.Fprint(out, "Username: ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return device.Credentials{}, fmt.Errorf("reading username: %w", err)
		}
		user = strings.TrimSpace(line)
	}
	if user == "" {
		return device.Credentials{}, fmt.Errorf("%w: empty username", util.ErrNoCredentials)
	}

	readPassword := c.ReadPassword
	if readPassword == nil {
		readPassword = terminalPassword
	}
	fmt.Fprintf(out, "Password for %s: ", user)
	pass, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return device.Credentials{}, fmt.Errorf("reading password: %w", err)
	}
	return device.Credentials{Username: user, Password: string(pass)}, nil
}

func terminalPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: stdin is not a terminal", util.ErrNoCredentials)
	}
	return term.ReadPassword(fd)
}

// ChainCredentials tries each provider in turn and returns the first
// credentials found.
type ChainCredentials []CredentialProvider

func (c ChainCredentials) Credentials(ctx context.Context) (device.Credentials, error) {
	var errs []error
	for _, p := range c {
		creds, err := p.Credentials(ctx)
		if err == nil {
			return creds, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return device.Credentials{}, util.ErrNoCredentials
	}
	return device.Credentials{}, errors.Join(errs...)
}
