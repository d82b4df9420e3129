package linkterm

import (
	"sort"
	"strings"
)

// ElementKind classifies a span of a decoded string.
type ElementKind int

const (
	// KindText is a run of printable characters with no escape introducer.
	KindText ElementKind = iota
	// KindSGR is a styling control sequence (CSI ... m).
	KindSGR
	// KindCSI is a non-styling CSI control sequence.
	KindCSI
	// KindOSC is an operating-system-command control sequence.
	KindOSC
	// KindEsc is a plain escape sequence (ESC followed by intermediates and a final byte).
	KindEsc
	// KindOther covers control strings (DCS, SOS, PM, APC) and malformed or
	// truncated escapes that could not be classified.
	KindOther
)

// String returns a short name for the element kind.
func (k ElementKind) String() string {
	switch k {
	case KindText:
		return "Text"
	case KindSGR:
		return "Sgr"
	case KindCSI:
		return "Csi"
	case KindOSC:
		return "Osc"
	case KindEsc:
		return "Esc"
	default:
		return "Other"
	}
}

// Element is a classified span of a decoded string. Start and End are byte
// offsets forming a half-open range [Start, End).
type Element struct {
	Kind  ElementKind
	Start int
	End   int
}

const (
	esc = 0x1b
	bel = 0x07
)

// Iterator segments a decoded string into an alternating sequence of text and
// control-sequence elements. The produced ranges are disjoint, in order, and
// cover the input exhaustively: concatenating them reproduces the input.
//
// The iterator is a byte-driven state machine over the ECMA-48 terminator
// rules (final byte in 0x40..0x7E for CSI, ST or BEL for OSC and the other
// control strings). A truncated escape at the end of the input is yielded as
// KindOther covering the remaining bytes.
type Iterator struct {
	s   string
	pos int
}

// NewIterator creates an iterator over s.
func NewIterator(s string) *Iterator {
	return &Iterator{s: s}
}

// Next yields the next element. The second return value is false once the
// input is exhausted.
func (it *Iterator) Next() (Element, bool) {
	if it.pos >= len(it.s) {
		return Element{}, false
	}

	start := it.pos
	if it.s[start] != esc {
		end := len(it.s)
		if i := strings.IndexByte(it.s[start:], esc); i >= 0 {
			end = start + i
		}
		it.pos = end
		return Element{Kind: KindText, Start: start, End: end}, true
	}

	el := it.parseEscape(start)
	it.pos = el.End
	return el, true
}

// parseEscape classifies the escape sequence starting at the ESC byte at start.
func (it *Iterator) parseEscape(start int) Element {
	s := it.s
	if start+1 >= len(s) {
		return Element{Kind: KindOther, Start: start, End: len(s)}
	}

	switch s[start+1] {
	case '[':
		return it.parseCSI(start)
	case ']':
		return it.parseString(start, KindOSC)
	case 'P', 'X', '^', '_':
		// DCS, SOS, PM, APC carry arbitrary payloads up to ST.
		return it.parseString(start, KindOther)
	default:
		return it.parsePlainEscape(start)
	}
}

// parseCSI consumes ESC [ parameter bytes, intermediate bytes, and a final
// byte. CSI sequences selecting graphic rendition (final byte 'm') are SGR.
func (it *Iterator) parseCSI(start int) Element {
	s := it.s
	i := start + 2
	for i < len(s) && s[i] >= 0x30 && s[i] <= 0x3f {
		i++
	}
	for i < len(s) && s[i] >= 0x20 && s[i] <= 0x2f {
		i++
	}
	if i >= len(s) {
		return Element{Kind: KindOther, Start: start, End: len(s)}
	}
	if s[i] < 0x40 || s[i] > 0x7e {
		// Illegal final byte. Consume up to and including it so the stream
		// keeps tiling.
		return Element{Kind: KindOther, Start: start, End: i + 1}
	}
	kind := KindCSI
	if s[i] == 'm' {
		kind = KindSGR
	}
	return Element{Kind: kind, Start: start, End: i + 1}
}

// parseString consumes a control string (OSC and friends) terminated by BEL
// or ST (ESC \). A bare ESC inside the payload aborts the string without
// being consumed, per ECMA-48.
func (it *Iterator) parseString(start int, kind ElementKind) Element {
	s := it.s
	for i := start + 2; i < len(s); i++ {
		switch s[i] {
		case bel:
			return Element{Kind: kind, Start: start, End: i + 1}
		case esc:
			if i+1 < len(s) && s[i+1] == '\\' {
				return Element{Kind: kind, Start: start, End: i + 2}
			}
			return Element{Kind: kind, Start: start, End: i}
		}
	}
	return Element{Kind: KindOther, Start: start, End: len(s)}
}

// parsePlainEscape consumes ESC, any intermediate bytes (0x20..0x2F), and a
// final byte (0x30..0x7E).
func (it *Iterator) parsePlainEscape(start int) Element {
	s := it.s
	i := start + 1
	for i < len(s) && s[i] >= 0x20 && s[i] <= 0x2f {
		i++
	}
	if i >= len(s) {
		return Element{Kind: KindOther, Start: start, End: len(s)}
	}
	if s[i] < 0x30 || s[i] > 0x7e {
		// Not a valid final byte (for example ESC ESC). Yield the lone ESC so
		// the next byte is re-examined.
		return Element{Kind: KindOther, Start: start, End: start + 1}
	}
	return Element{Kind: KindEsc, Start: start, End: i + 1}
}

// Elements collects all elements of s into a slice.
func Elements(s string) []Element {
	var els []Element
	it := NewIterator(s)
	for el, ok := it.Next(); ok; el, ok = it.Next() {
		els = append(els, el)
	}
	return els
}

// indexSpan records where one text element landed in the stripped projection.
type indexSpan struct {
	stripped int
	source   int
	length   int
}

// SourceIndex maps byte offsets in the stripped text back to byte offsets in
// the decoded string it was produced from. The mapping is monotonic and total.
type SourceIndex struct {
	spans []indexSpan
	total int
}

// Strip returns the concatenation of all text elements of s together with the
// index that maps stripped offsets back to s.
func Strip(s string) (string, *SourceIndex) {
	var b strings.Builder
	idx := &SourceIndex{}
	it := NewIterator(s)
	for el, ok := it.Next(); ok; el, ok = it.Next() {
		if el.Kind != KindText {
			continue
		}
		idx.spans = append(idx.spans, indexSpan{
			stripped: b.Len(),
			source:   el.Start,
			length:   el.End - el.Start,
		})
		b.WriteString(s[el.Start:el.End])
	}
	idx.total = b.Len()
	return b.String(), idx
}

// SourceOffset maps a byte offset in the stripped text to the corresponding
// byte offset in the source string. Offsets at or past the end of the stripped
// text map to the position just after the last text byte.
func (x *SourceIndex) SourceOffset(off int) int {
	if len(x.spans) == 0 {
		return 0
	}
	if off >= x.total {
		last := x.spans[len(x.spans)-1]
		return last.source + last.length
	}
	if off < 0 {
		off = 0
	}
	i := sort.Search(len(x.spans), func(i int) bool {
		sp := x.spans[i]
		return off < sp.stripped+sp.length
	})
	sp := x.spans[i]
	return sp.source + (off - sp.stripped)
}

// SourceRange maps a half-open range in the stripped text to the half-open
// source range spanning it. When the stripped range straddles control
// sequences the returned range includes them; the injector keeps a single
// hyperlink spanning the styled run.
func (x *SourceIndex) SourceRange(start, end int) (int, int) {
	if end <= start {
		off := x.SourceOffset(start)
		return off, off
	}
	return x.SourceOffset(start), x.SourceOffset(end-1) + 1
}
