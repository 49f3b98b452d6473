package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Prompt asks an operator on the terminal
type Prompt struct {
	in          io.Reader
	out         io.Writer
	interactive func() bool
}

// NewTerminalPrompt prompts on stdin/stderr when stdin is a terminal
func NewTerminalPrompt() *Prompt {
	return &Prompt{
		in:  os.Stdin,
		out: os.Stderr,
		interactive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

// NewPrompt reads codes from in and writes questions to out
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: in, out: out, interactive: func() bool { return true }}
}

// Code implements Source. It blocks until a line is read or ctx is done.
func (p *Prompt) Code(ctx context.Context, kind Kind, hint string) (string, error) {
	if !p.interactive() {
		return "", ErrNoCode
	}

	question := fmt.Sprintf("Enter %s", kind)
	if hint != "" {
		question += fmt.Sprintf(" (sent to %s)", hint)
	}
	fmt.Fprintf(p.out, "%s: ", question)

	type line struct {
		text string
		err  error
	}
	read := make(chan line, 1)
	go func() {
		text, err := bufio.NewReader(p.in).ReadString('\n')
		read <- line{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-read:
		code := strings.TrimSpace(l.text)
		if code == "" {
			if l.err != nil {
				return "", errors.Wrap(l.err, "failed to read challenge code")
			}
			return "", errors.New("empty challenge code")
		}
		return code, nil
	}
}
