package linkterm

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns byte chunks into string fragments safe for the later pipeline
// stages. Chunks arrive with no alignment guarantees, so a multi-byte
// character may be split across reads. The decoder retains a trailing byte
// sequence only while it is still a strict prefix of a valid character and
// prepends it to the next chunk; bytes that can no longer form a valid
// character are replaced with U+FFFD at the earliest point at which
// invalidity can be determined.
//
// A Decoder is owned by a single producer and must not be shared.
type Decoder struct {
	t     transform.Transformer
	carry []byte
}

// NewDecoder creates a streaming UTF-8 decoder with empty carry state.
func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode decodes chunk, prepending any carry from the previous call. The
// returned string contains only complete characters; a trailing incomplete
// sequence is buffered for the next call. Decode never fails.
func (d *Decoder) Decode(chunk []byte) string {
	src := chunk
	if len(d.carry) > 0 {
		src = make([]byte, 0, len(d.carry)+len(chunk))
		src = append(src, d.carry...)
		src = append(src, chunk...)
		d.carry = d.carry[:0]
	}
	if len(src) == 0 {
		return ""
	}

	// Worst case every input byte becomes a replacement character.
	out := make([]byte, 0, len(src))
	dst := make([]byte, len(src)*utf8.UTFMax)

	for len(src) > 0 {
		nDst, nSrc, err := d.t.Transform(dst, src, false)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]
		switch err {
		case nil:
			// Everything consumed.
			if len(src) > 0 {
				// Defensive: should not happen with a nil error.
				d.carry = append(d.carry, src...)
			}
			return string(out)
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			// The remaining bytes are a strict prefix of a valid character.
			d.carry = append(d.carry, src...)
			return string(out)
		default:
			// The UTF-8 decoder substitutes rather than erroring; treat any
			// unexpected error as one replacement character and move on.
			out = utf8.AppendRune(out, utf8.RuneError)
			src = src[1:]
		}
	}
	return string(out)
}

// Pending returns the number of carried bytes awaiting completion.
func (d *Decoder) Pending() int {
	return len(d.carry)
}

// Reset discards any carried bytes.
func (d *Decoder) Reset() {
	d.carry = d.carry[:0]
	d.t.Reset()
}
