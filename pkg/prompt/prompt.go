// Package prompt reads passwords from the terminal with echo disabled.
package prompt

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

var ErrPasswordMismatch = errors.New("passwords do not match")

// Terminal password prompter. Input that is not a terminal is read line by line.
type Terminal struct {
	fd     int
	reader *bufio.Reader
	out    io.Writer
}

// New prompter reading stdin and writing labels to stderr
func New() *Terminal {
	return &Terminal{
		fd:     int(os.Stdin.Fd()),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stderr,
	}
}

// NewWithReader prompter reading lines from in
func NewWithReader(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{fd: -1, reader: bufio.NewReader(in), out: out}
}

// Password ask password until a non empty one is entered
func (p *Terminal) Password(ctx context.Context, label string) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fmt.Fprint(p.out, label)
		password, err := p.readLine()
		if err != nil {
			return nil, errors.Wrap(err, "fail to read password")
		}

		if len(password) > 0 {
			return password, nil
		}
	}
}

// NewPassword ask password for a new key twice
func (p *Terminal) NewPassword(ctx context.Context, name string) ([]byte, error) {
	password, err := p.Password(ctx, fmt.Sprintf("Enter password for %s: ", name))
	if err != nil {
		return nil, err
	}

	confirm, err := p.Password(ctx, fmt.Sprintf("Confirm password for %s: ", name))
	if err != nil {
		memguard.WipeBytes(password)
		return nil, err
	}
	defer memguard.WipeBytes(confirm)

	if !bytes.Equal(password, confirm) {
		memguard.WipeBytes(password)
		return nil, ErrPasswordMismatch
	}

	return password, nil
}

func (p *Terminal) readLine() ([]byte, error) {
	if p.fd >= 0 && term.IsTerminal(p.fd) {
		defer fmt.Fprintln(p.out)
		return term.ReadPassword(p.fd)
	}

	line, err := p.reader.ReadBytes('\n')
	if err != nil && (err != io.EOF || len(line) == 0) {
		return nil, err
	}

	return bytes.TrimRight(line, "\r\n"), nil
}
