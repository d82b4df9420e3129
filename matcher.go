package linkterm

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Match is a validated rule match: a span of the output that refers to an
// existing filesystem path.
type Match struct {
	// Rule is the name of the rule that produced the match.
	Rule string
	// Path is the resolved absolute path.
	Path string
	// Line and Col are the extracted location, 0 when absent.
	Line int
	Col  int
	// WrapStart and WrapEnd delimit the half-open byte range in the stripped
	// text that the hyperlink wraps.
	WrapStart int
	WrapEnd   int
	// SourceStart and SourceEnd delimit the corresponding range in the
	// decoded string. When the match straddles control sequences the range
	// includes them.
	SourceStart int
	SourceEnd   int

	// rawPath is the path as it appeared in the text, before resolution.
	rawPath string
}

// matcher locates rule matches in stripped text and validates them against
// the filesystem.
type matcher struct {
	rules           []Rule
	fs              afero.Fs
	wd              WorkingDirProvider
	requireExisting bool
	mw              *Middleware
}

// find returns all validated matches in stripped, ordered by position.
// Per-rule matches are non-overlapping by construction; across rules, an
// overlap keeps the match of the higher-priority rule.
func (m *matcher) find(stripped string, idx *SourceIndex) []Match {
	if stripped == "" {
		return nil
	}

	type candidate struct {
		ruleMatch
		rule *Rule
	}

	var kept []candidate
	for i := range m.rules {
		rule := &m.rules[i]
		for _, rm := range rule.findAll(stripped) {
			overlaps := false
			for _, k := range kept {
				if rm.start < k.end && k.start < rm.end {
					overlaps = true
					break
				}
			}
			if !overlaps {
				kept = append(kept, candidate{ruleMatch: rm, rule: rule})
			}
		}
	}
	if kept == nil {
		return nil
	}

	cwd := m.wd.WorkingDir()

	matches := make([]Match, 0, len(kept))
	for _, c := range kept {
		match := Match{
			Rule:      c.rule.Name,
			Path:      m.resolve(cwd, c.path),
			Line:      c.line,
			Col:       c.col,
			WrapStart: c.wrapStart,
			WrapEnd:   c.wrapEnd,
			rawPath:   c.path,
		}
		if !m.mw.filterMatch(match, m.validate) {
			continue
		}
		match.SourceStart, match.SourceEnd = idx.SourceRange(c.wrapStart, c.wrapEnd)
		matches = append(matches, match)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].WrapStart < matches[j].WrapStart
	})
	return matches
}

// resolve turns an extracted path into an absolute one, joining relative
// paths with the working directory.
func (m *matcher) resolve(cwd, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(cwd, path)
}

// validate applies the existence gate. Probe errors count as "not found": a
// match never links unless the filesystem confirms it. With the gate disabled
// the match links when the path exists or merely looks like a path (contains
// a separator, is dot-relative, or is absolute).
func (m *matcher) validate(match Match) bool {
	exists, err := afero.Exists(m.fs, match.Path)
	if err != nil {
		exists = false
	}
	if m.requireExisting {
		return exists
	}
	return exists ||
		strings.ContainsRune(match.rawPath, '/') ||
		strings.HasPrefix(match.rawPath, ".") ||
		filepath.IsAbs(match.rawPath)
}
