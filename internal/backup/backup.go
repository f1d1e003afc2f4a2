// Package backup names the copies taken of destinations before they are
// replaced. Method names and environment variables follow GNU coreutils:
// VERSION_CONTROL selects the default method, SIMPLE_BACKUP_SUFFIX the
// default suffix.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Method selects how backup names are generated.
type Method int

const (
	None     Method = iota // never make backups
	Simple                 // always append the suffix
	Numbered               // always make numbered backups: name.~N~
	Existing               // numbered if numbered backups exist, else simple
)

// DefaultSuffix is used when neither -S nor SIMPLE_BACKUP_SUFFIX is set.
const DefaultSuffix = "~"

var methodNames = []struct {
	name   string
	method Method
}{
	{"none", None},
	{"off", None},
	{"simple", Simple},
	{"never", Simple},
	{"numbered", Numbered},
	{"t", Numbered},
	{"existing", Existing},
	{"nil", Existing},
}

func (m Method) String() string {
	switch m {
	case None:
		return "none"
	case Simple:
		return "simple"
	case Numbered:
		return "numbered"
	case Existing:
		return "existing"
	default:
		return "unknown"
	}
}

// ParseMethod parses a method name. Unambiguous prefixes are accepted. An
// empty string selects the VERSION_CONTROL default, or Existing.
func ParseMethod(s string) (Method, error) {
	if s == "" {
		env := os.Getenv("VERSION_CONTROL")
		if env == "" {
			return Existing, nil
		}
		s = env
	}

	var (
		found   Method
		matches int
	)
	for _, mn := range methodNames {
		if mn.name == s {
			return mn.method, nil
		}
		if strings.HasPrefix(mn.name, s) {
			if matches > 0 && found == mn.method {
				continue
			}
			found = mn.method
			matches++
		}
	}
	switch matches {
	case 0:
		return None, fmt.Errorf("invalid backup type %q", s)
	case 1:
		return found, nil
	default:
		return None, fmt.Errorf("ambiguous backup type %q", s)
	}
}

// SuffixFromEnv returns SIMPLE_BACKUP_SUFFIX, or DefaultSuffix.
func SuffixFromEnv() string {
	if s := os.Getenv("SIMPLE_BACKUP_SUFFIX"); s != "" && !strings.Contains(s, "/") {
		return s
	}
	return DefaultSuffix
}

// Policy is a backup method plus the simple-backup suffix.
type Policy struct {
	Suffix string
	Method Method
}

// Enabled reports whether backups are taken at all.
func (p Policy) Enabled() bool {
	return p.Method != None
}

func (p Policy) suffix() string {
	if p.Suffix == "" {
		return DefaultSuffix
	}
	return p.Suffix
}

// Name returns the path the existing file at path should be renamed to.
func (p Policy) Name(path string) (string, error) {
	switch p.Method {
	case Simple:
		return path + p.suffix(), nil
	case Numbered, Existing:
		highest, err := highestNumbered(path)
		if err != nil {
			return "", err
		}
		if p.Method == Existing && highest == 0 {
			return path + p.suffix(), nil
		}
		return fmt.Sprintf("%s.~%d~", path, highest+1), nil
	default:
		return "", fmt.Errorf("backups disabled for %s", path)
	}
}

// highestNumbered returns the largest N among name.~N~ siblings of path.
func highestNumbered(path string) (int, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scan backups in %s: %w", dir, err)
	}

	prefix := base + ".~"
	highest := 0
	for _, e := range entries {
		name := e.Name()
		if len(name) <= len(prefix) || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, "~") {
			continue
		}
		digits := name[len(prefix) : len(name)-1]
		if digits == "" || digits[0] == '0' {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	return highest, nil
}
