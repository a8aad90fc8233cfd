package ui

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
)

// Prompter asks yes/no questions on a terminal. It implements
// calls.Confirmer.
type Prompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter reads answers from in and writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// StdPrompter prompts on stdin and stderr.
func StdPrompter() *Prompter {
	return NewPrompter(os.Stdin, os.Stderr)
}

// Confirm asks prompt and reports whether the answer was yes. Anything
// else, including EOF, is a no.
func (p *Prompter) Confirm(prompt string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	io.WriteString(p.out, WarningStyle.Render(prompt)+" [y/N] ")
	input, _ := p.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	return false
}
