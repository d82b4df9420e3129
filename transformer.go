package linkterm

import (
	"strings"

	"github.com/spf13/afero"
)

// DefaultMaxPending caps the held-back tail awaiting a line terminator.
const DefaultMaxPending = 4096

// Transformer is the streaming pipeline that rewrites source-location
// references in a terminal output stream into OSC 8 hyperlinks. It consumes
// byte chunks of arbitrary length and alignment and produces a byte-for-byte
// equivalent stream with hyperlink escapes woven through it: existing styling
// is preserved, split characters are never corrupted, and control sequences
// are never broken.
//
// The only state persisting across chunks is the decoder carry (trailing
// bytes of a split character) and the held-back tail (see Flush). A
// Transformer is owned by a single logical producer; invocations must be
// serialized per instance. The rule set, URL template, filesystem, and
// working-directory provider are only read after construction and may be
// shared between instances; the recording provider is written on every
// Transform call.
type Transformer struct {
	rules           []Rule
	tmpl            *URLTemplate
	requireExisting bool
	fs              afero.Fs
	wd              WorkingDirProvider
	mw              *Middleware
	recording       RecordingProvider
	maxPending      int

	dec     *Decoder
	pending string
}

// Option configures a Transformer during construction.
type Option func(*Transformer)

// WithRules sets the enabled recognition rules in priority order.
// Defaults to BaselineRules.
func WithRules(rules ...Rule) Option {
	return func(t *Transformer) {
		t.rules = rules
	}
}

// WithURLTemplate sets the URL scheme applied to validated matches.
// Defaults to DefaultURLTemplate.
func WithURLTemplate(tmpl *URLTemplate) Option {
	return func(t *Transformer) {
		if tmpl != nil {
			t.tmpl = tmpl
		}
	}
}

// WithRequireExistingPath controls the existence gate. When true (the
// default) a match only links if its resolved path exists; when false a match
// also links if the path merely looks like one.
func WithRequireExistingPath(require bool) Option {
	return func(t *Transformer) {
		t.requireExisting = require
	}
}

// WithFilesystem sets the filesystem used by the existence probe.
// Defaults to the OS filesystem.
func WithFilesystem(fs afero.Fs) Option {
	return func(t *Transformer) {
		if fs != nil {
			t.fs = fs
		}
	}
}

// WithWorkingDir sets the provider used to resolve relative paths.
// Defaults to the process working directory.
func WithWorkingDir(p WorkingDirProvider) Option {
	return func(t *Transformer) {
		if p != nil {
			t.wd = p
		}
	}
}

// WithMiddleware sets functions to intercept match validation and URL
// construction. Each hook receives the original parameters and a next
// function to call the default implementation.
func WithMiddleware(mw *Middleware) Option {
	return func(t *Transformer) {
		if t.mw == nil {
			t.mw = &Middleware{}
		}
		t.mw.Merge(mw)
	}
}

// WithRecording sets the handler for capturing raw chunks before
// transformation. Defaults to a no-op.
func WithRecording(p RecordingProvider) Option {
	return func(t *Transformer) {
		if p != nil {
			t.recording = p
		}
	}
}

// WithMaxPending caps the held-back tail. A non-positive value disables
// holding back entirely, so matches never span chunks.
func WithMaxPending(n int) Option {
	return func(t *Transformer) {
		t.maxPending = n
	}
}

// New creates a Transformer with the given options.
func New(opts ...Option) *Transformer {
	t := &Transformer{
		rules:           BaselineRules(),
		tmpl:            DefaultURLTemplate(),
		requireExisting: true,
		fs:              afero.NewOsFs(),
		wd:              OsWorkingDir{},
		recording:       NoopRecording{},
		maxPending:      DefaultMaxPending,
		dec:             NewDecoder(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Transform consumes one chunk from the shell and returns the transformed
// bytes to forward to the terminal. The returned slice may be empty when the
// whole chunk was retained (a split character, or a line still in progress
// that could grow into a match); retained bytes are emitted by a later call
// or by Flush. Transform never fails.
func (t *Transformer) Transform(chunk []byte) []byte {
	t.recording.Record(chunk)

	s := t.dec.Decode(chunk)
	if s == "" && t.pending == "" {
		return nil
	}
	s = t.pending + s
	t.pending = ""

	if cut := t.holdbackPoint(s); cut < len(s) {
		t.pending = s[cut:]
		s = s[:cut]
	}
	if s == "" {
		return nil
	}
	return t.process(s)
}

// Flush transforms and returns any held-back tail. The enclosing forwarding
// loop should call it whenever no further data is immediately available, so
// that prompts and other unterminated lines are not delayed. Flush does not
// touch the decoder carry: a split character stays buffered until its
// remaining bytes arrive.
func (t *Transformer) Flush() []byte {
	if t.pending == "" {
		return nil
	}
	s := t.pending
	t.pending = ""
	return t.process(s)
}

// holdbackPoint returns the cut after which the decoded string is retained
// for the next chunk: everything past the last line terminator, as long as
// it fits the pending cap. A completed line is emitted without waiting for
// more input: FilePath never spans a line terminator, and the traceback rules
// only do when their captured path contains one.
func (t *Transformer) holdbackPoint(s string) int {
	if t.maxPending <= 0 {
		return len(s)
	}
	cut := 0
	if i := strings.LastIndexAny(s, "\n\r"); i >= 0 {
		cut = i + 1
	}
	if len(s)-cut > t.maxPending {
		return len(s)
	}
	return cut
}

// process runs the match-and-inject stages over one decoded fragment.
func (t *Transformer) process(s string) []byte {
	stripped, idx := Strip(s)

	m := &matcher{
		rules:           t.rules,
		fs:              t.fs,
		wd:              t.wd,
		requireExisting: t.requireExisting,
		mw:              t.mw,
	}
	matches := m.find(stripped, idx)
	if len(matches) == 0 {
		return []byte(s)
	}

	in := &injector{tmpl: t.tmpl, mw: t.mw}
	return in.inject(s, matches)
}
