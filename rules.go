package linkterm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Rule recognizes one shape of source-location reference in stripped text.
// A rule carries a pattern and a semantic extractor producing a path with an
// optional line and column from each match. Rules are ordered by priority;
// the first rule whose pattern matches a span wins and suppresses
// lower-priority rules on that span.
type Rule struct {
	// Name identifies the rule in configuration.
	Name string

	pattern   *regexp.Regexp
	pathGroup int
	lineGroup int
	colGroup  int
	// wrapGroup is the submatch whose span is wrapped with the hyperlink.
	// Zero wraps the whole match.
	wrapGroup int
	// anchor optionally rejects extracted paths that do not look like paths.
	anchor func(path string) bool
}

// ruleMatch is one raw pattern match in stripped-text coordinates.
type ruleMatch struct {
	start, end         int // full match, used for overlap resolution
	wrapStart, wrapEnd int // span to wrap
	path               string
	line, col          int // 0 when absent
}

// mustRule compiles a rule definition, resolving named capture groups to
// submatch indices up front.
func mustRule(name, pattern, wrapGroup string, anchor func(string) bool) Rule {
	re := regexp.MustCompile(pattern)
	group := func(wanted string) int {
		for i, n := range re.SubexpNames() {
			if n == wanted {
				return i
			}
		}
		return 0
	}
	pathGroup := group("path")
	if pathGroup == 0 {
		panic(fmt.Sprintf("rule %s: pattern has no path group", name))
	}
	wrap := 0
	if wrapGroup != "" {
		wrap = group(wrapGroup)
		if wrap == 0 {
			panic(fmt.Sprintf("rule %s: pattern has no %s group", name, wrapGroup))
		}
	}
	return Rule{
		Name:      name,
		pattern:   re,
		pathGroup: pathGroup,
		lineGroup: group("line"),
		colGroup:  group("col"),
		wrapGroup: wrap,
		anchor:    anchor,
	}
}

// pathLike rejects FilePath candidates whose path contains neither a slash
// nor a file-extension-like suffix, so that bare word:number occurrences do
// not reach the filesystem probe.
var extSuffix = regexp.MustCompile(`\.[A-Za-z0-9]+$`)

func pathLike(path string) bool {
	return strings.ContainsRune(path, '/') || extSuffix.MatchString(path)
}

// The baseline recognition rules.
var (
	// RulePythonTraceback matches CPython traceback frames:
	//
	//	File "/tmp/x.py", line 7, in foo
	//
	// The hyperlink wraps the quoted path only.
	RulePythonTraceback = mustRule(
		"PythonTraceback",
		`File "(?P<path>[^"]+)", line (?P<line>\d+)`,
		"path",
		nil,
	)

	// RuleIpdbTraceback matches pdb/ipdb frame markers:
	//
	//	> /tmp/x.py(45)some_func()
	//
	// The hyperlink wraps the path only.
	RuleIpdbTraceback = mustRule(
		"IpdbTraceback",
		`> (?P<path>[^(]+)\((?P<line>\d+)\)`,
		"path",
		nil,
	)

	// RuleFilePath matches bare path:line references with an optional column:
	//
	//	src/main.rs:42
	//	src/main.rs:42:7
	//
	// The hyperlink wraps the whole reference.
	RuleFilePath = mustRule(
		"FilePath",
		`(?P<path>[A-Za-z0-9_./-]+):(?P<line>\d+)(?::(?P<col>\d+))?`,
		"",
		pathLike,
	)
)

// BaselineRules returns the baseline rule set in priority order. Traceback
// rules outrank FilePath where spans overlap.
func BaselineRules() []Rule {
	return []Rule{RulePythonTraceback, RuleIpdbTraceback, RuleFilePath}
}

// RuleByName resolves a configuration name to a baseline rule,
// case-insensitively.
func RuleByName(name string) (Rule, bool) {
	for _, r := range BaselineRules() {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Rule{}, false
}

// RulesByName resolves an ordered list of configuration names. Unknown names
// are a configuration error.
func RulesByName(names []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(names))
	for _, name := range names {
		r, ok := RuleByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown rule %q", name)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// findAll scans stripped for non-overlapping matches of the rule, extracting
// path, line, and column. Matches whose path is empty after trimming, or that
// fail the rule's anchor, are discarded.
func (r *Rule) findAll(stripped string) []ruleMatch {
	idxs := r.pattern.FindAllStringSubmatchIndex(stripped, -1)
	if idxs == nil {
		return nil
	}

	matches := make([]ruleMatch, 0, len(idxs))
	for _, loc := range idxs {
		m := ruleMatch{start: loc[0], end: loc[1], wrapStart: loc[0], wrapEnd: loc[1]}

		ps, pe := loc[2*r.pathGroup], loc[2*r.pathGroup+1]
		if ps < 0 {
			continue
		}
		m.path = strings.TrimSpace(stripped[ps:pe])
		if m.path == "" {
			continue
		}
		if r.anchor != nil && !r.anchor(m.path) {
			continue
		}

		if r.wrapGroup != 0 {
			m.wrapStart, m.wrapEnd = loc[2*r.wrapGroup], loc[2*r.wrapGroup+1]
		}
		if r.lineGroup != 0 && loc[2*r.lineGroup] >= 0 {
			m.line, _ = strconv.Atoi(stripped[loc[2*r.lineGroup]:loc[2*r.lineGroup+1]])
		}
		if r.colGroup != 0 && loc[2*r.colGroup] >= 0 {
			m.col, _ = strconv.Atoi(stripped[loc[2*r.colGroup]:loc[2*r.colGroup+1]])
		}
		matches = append(matches, m)
	}
	return matches
}
