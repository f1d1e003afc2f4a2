package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// LinePrompter asks overwrite questions on one stream and reads the answer
// from another, one line per question.
type LinePrompter struct {
	in      *bufio.Reader
	out     io.Writer
	program string
	mu      sync.Mutex
}

// NewLinePrompter creates a prompter that writes questions to out and
// reads replies from in.
func NewLinePrompter(program string, in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{program: program, in: bufio.NewReader(in), out: out}
}

// PromptOverwrite asks whether path may be overwritten. Only a reply that
// starts with y or Y counts as yes; end of input is a no.
func (p *LinePrompter) PromptOverwrite(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "%s: overwrite '%s'? ", p.program, path)
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "y") || strings.HasPrefix(line, "Y")
}
