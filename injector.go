package linkterm

import "bytes"

// OSC 8 hyperlink escape pair. The open sequence carries the URL; the close
// sequence is fixed.
const (
	hyperlinkOpenPrefix = "\x1b]8;;"
	hyperlinkTerminator = "\x1b\\"
	hyperlinkClose      = hyperlinkOpenPrefix + hyperlinkTerminator
)

// injector reconstructs the output stream, re-emitting every source byte in
// order and wrapping each validated match with the hyperlink escape pair.
type injector struct {
	tmpl *URLTemplate
	mw   *Middleware
}

// inject walks the elements of source with a cursor and a pointer into the
// ordered match list. Text bytes inside a match are emitted between the
// open and close anchors; non-text elements are emitted verbatim. When a
// match spans styling, the open is emitted once at the first match byte and
// the close once after the last, so the terminal renders a single hyperlink
// covering the styled run.
func (in *injector) inject(source string, matches []Match) []byte {
	var out bytes.Buffer
	out.Grow(len(source) + 64*len(matches))

	mi := 0
	open := false
	sp := 0 // stripped offset of the current element's first byte

	it := NewIterator(source)
	for el, ok := it.Next(); ok; el, ok = it.Next() {
		if el.Kind != KindText {
			out.WriteString(source[el.Start:el.End])
			continue
		}

		length := el.End - el.Start
		pos := el.Start
		for pos < el.End {
			if open {
				m := matches[mi]
				if m.WrapEnd > sp+length {
					// The match continues past this element.
					out.WriteString(source[pos:el.End])
					pos = el.End
					continue
				}
				closeAt := el.Start + (m.WrapEnd - sp)
				out.WriteString(source[pos:closeAt])
				out.WriteString(hyperlinkClose)
				open = false
				mi++
				pos = closeAt
				continue
			}

			if mi >= len(matches) || matches[mi].WrapStart >= sp+length {
				// No match starts inside this element.
				out.WriteString(source[pos:el.End])
				pos = el.End
				continue
			}

			m := matches[mi]
			openAt := el.Start + (m.WrapStart - sp)
			if openAt > pos {
				out.WriteString(source[pos:openAt])
				pos = openAt
			}
			out.WriteString(hyperlinkOpenPrefix)
			out.WriteString(in.url(m))
			out.WriteString(hyperlinkTerminator)
			open = true
		}

		sp += length
	}

	if open {
		// Defensive: a match ending at or before the end of the stripped text
		// is already closed inside the loop; this closes one whose end lies
		// past the last text element.
		out.WriteString(hyperlinkClose)
	}
	return out.Bytes()
}

// url builds the hyperlink target for a match via the middleware seam.
func (in *injector) url(m Match) string {
	return in.mw.buildURL(m, func(m Match) string {
		return in.tmpl.URL(m.Path, m.Line)
	})
}
