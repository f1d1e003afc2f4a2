package engine

// Prompter asks the operator whether an existing destination may be
// overwritten.
type Prompter interface {
	PromptOverwrite(path string) bool
}

// Progress displays best-effort status. Errors are never fatal.
type Progress interface {
	Show(phase, total int, label string) error
	Clear() error
}

// denyPrompter answers no to every prompt.
type denyPrompter struct{}

func (denyPrompter) PromptOverwrite(string) bool { return false }

type nopProgress struct{}

func (nopProgress) Show(int, int, string) error { return nil }
func (nopProgress) Clear() error                { return nil }
