// Package linkterm rewrites source-location references in a terminal output
// stream into OSC 8 hyperlinks.
//
// The package sits between a shell and the terminal emulator that displays
// it: feed it the raw bytes the shell produces, forward what it returns, and
// references like "src/main.rs:42" or Python traceback frames come out
// wrapped in hyperlink escapes that compatible terminals render as clickable
// text. Neither the shell nor the programs it runs see any difference, and
// the stream stays byte-for-byte equivalent apart from the injected escapes:
// existing colors and attributes are preserved, characters split across reads
// are never corrupted, and control sequences are never broken.
//
// # Quick Start
//
//	tr := linkterm.New()
//	out := tr.Transform(chunk)   // chunk read from the PTY master
//	out = append(out, tr.Flush()...)
//	os.Stdout.Write(out)
//
// # Pipeline
//
// Each chunk flows through four stages:
//
//   - [Decoder]: streaming UTF-8 decode, carrying split characters across
//     chunk boundaries
//   - [Iterator]: a byte-driven state machine segmenting the decoded string
//     into text and control-sequence [Element] spans
//   - [Rule] matching and validation: recognition rules scan the stripped
//     text and each match's path is checked against the filesystem
//   - injection: every original byte is re-emitted in order, with validated
//     matches enclosed in OSC 8 open/close pairs
//
// Matching happens on the stripped text (control sequences removed), and the
// [SourceIndex] maps match offsets back into the original string, so a
// reference that is partly colored still becomes a single hyperlink with its
// styling intact.
//
// # Validation
//
// Every extracted path is resolved against the working directory and checked
// for existence before a link is emitted, which keeps arbitrary word:number
// occurrences (version strings, timestamps) from turning into links. Probe
// failures count as "not found". The gate can be relaxed with
// [WithRequireExistingPath].
//
// # Configuration
//
// The Transformer is configured with functional options:
//
//	tr := linkterm.New(
//	    linkterm.WithRules(linkterm.RuleFilePath),
//	    linkterm.WithURLTemplate(linkterm.MustURLTemplate("vscode://file/{abs_path}:{line}")),
//	    linkterm.WithWorkingDir(linkterm.StaticWorkingDir("/repo")),
//	)
//
// URL templates support the {abs_path} and {line} placeholders; anything else
// is rejected when the template is parsed.
//
// # Concurrency
//
// A Transformer is synchronous and holds no locks. It is owned by a single
// logical producer (typically the output-forwarding loop of a PTY wrapper);
// to transform several streams, give each its own Transformer. Rules and
// templates are immutable and may be shared.
package linkterm
