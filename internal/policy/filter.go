// Package policy implements the command safety gate. The gate is a deny-list
// of glob patterns loaded from a YAML policy file: a command is allowed unless
// it matches a deny pattern. There is deliberately no allow-list; the policy
// is default-allow with deny overrides, and an absent policy file means an
// empty deny-list.
package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DenialReason is the stable, human-readable reason attached to every
// rejection.
const DenialReason = "Command blocked by denylist."

// policyFile is the on-disk shape of the deny-list document.
type policyFile struct {
	Commands []string `yaml:"commands"`
}

// Filter decides whether a command string may run. It is a pure function of
// the loaded pattern set and safe for concurrent use across pipeline runs.
type Filter struct {
	mu       sync.RWMutex
	path     string
	patterns []*regexp.Regexp
	raw      []string
	logger   *zap.Logger
}

// NewFilter loads deny patterns from path. A missing file yields an empty
// deny-list; this is permissive-by-default and is logged as a warning so
// operators notice.
func NewFilter(path string, logger *zap.Logger) (*Filter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Filter{path: path, logger: logger}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// reload re-reads the policy file and swaps the pattern set atomically.
func (f *Filter) reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.logger.Warn("denylist policy file missing; no commands will be blocked",
				zap.String("path", f.path))
			f.mu.Lock()
			f.patterns = nil
			f.raw = nil
			f.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read denylist: %w", err)
	}

	var doc policyFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse denylist: %w", err)
	}

	compiled := make([]*regexp.Regexp, 0, len(doc.Commands))
	for _, pattern := range doc.Commands {
		re, err := compileGlob(pattern)
		if err != nil {
			return fmt.Errorf("bad deny pattern %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}

	f.mu.Lock()
	f.patterns = compiled
	f.raw = append([]string(nil), doc.Commands...)
	f.mu.Unlock()

	if len(compiled) == 0 {
		f.logger.Warn("denylist is empty; every command will be permitted",
			zap.String("path", f.path))
	} else {
		f.logger.Info("denylist loaded",
			zap.String("path", f.path), zap.Int("patterns", len(compiled)))
	}
	return nil
}

// IsAllowed reports whether command may run. On rejection the second return
// value is DenialReason; on acceptance it is empty.
func (f *Filter) IsAllowed(command string) (bool, string) {
	lowered := strings.ToLower(command)

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, re := range f.patterns {
		if re.MatchString(lowered) {
			return false, DenialReason
		}
	}
	return true, ""
}

// Patterns returns the raw deny patterns currently loaded, for operator
// display.
func (f *Filter) Patterns() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.raw...)
}

// compileGlob translates a shell-style glob into an anchored regexp.
// Semantics match fnmatch: '*' matches any run of characters including
// spaces and path separators, '?' matches one character, '[seq]' matches
// one character in seq and '[!seq]' one character not in seq; an
// unterminated '[' is a literal bracket. Patterns are lowercased so
// matching is case-insensitive against lowercased commands.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	runes := []rune(strings.ToLower(pattern))
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(runes); i++ {
		switch r := runes[i]; r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		case '[':
			j := i + 1
			if j < len(runes) && runes[j] == '!' {
				j++
			}
			if j < len(runes) && runes[j] == ']' {
				j++
			}
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j >= len(runes) {
				sb.WriteString(`\[`)
				continue
			}
			set := strings.ReplaceAll(string(runes[i+1:j]), `\`, `\\`)
			if strings.HasPrefix(set, "!") {
				set = "^" + set[1:]
			} else if strings.HasPrefix(set, "^") {
				set = `\` + set
			}
			// Only a leading ']' survives the scan; RE2 needs it escaped.
			set = strings.Replace(set, "]", `\]`, 1)
			sb.WriteString("[" + set + "]")
			i = j
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
