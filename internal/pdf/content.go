package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// leadingFactor is the line spacing for multi-line text, relative to size.
const leadingFactor = 1.2

// contentWriter accumulates content stream operators.
type contentWriter struct {
	buf bytes.Buffer
}

func (w *contentWriter) op(args ...string) {
	w.buf.WriteString(strings.Join(args, " "))
	w.buf.WriteByte('\n')
}

// matrixOp writes "a b c d e f cm".
func (w *contentWriter) matrixOp(m matrix) {
	w.op(num(m[0]), num(m[1]), num(m[2]), num(m[3]), num(m[4]), num(m[5]), "cm")
}

// text draws encoded lines with the baseline of the first at (x, y). Later
// lines move down by the leading.
func (w *contentWriter) text(font string, size, x, y float64, lines [][]byte) {
	w.op("q")
	w.op("0", "g")
	w.op("BT")
	w.op("/"+font, num(size), "Tf")
	w.op("1", "0", "0", "1", num(x), num(y), "Tm")
	for i, line := range lines {
		if i > 0 {
			w.op("0", num(-size*leadingFactor), "Td")
		}
		w.op(literal(line), "Tj")
	}
	w.op("ET")
	w.op("Q")
}

// image paints XObject name into the w x h box with lower-left (x, y).
func (w *contentWriter) image(name string, x, y, width, height float64) {
	w.op("q")
	w.op(num(width), "0", "0", num(height), num(x), num(y), "cm")
	w.op("/"+name, "Do")
	w.op("Q")
}

// clip intersects the clipping path with a rectangle.
func (w *contentWriter) clip(llx, lly, width, height float64) {
	w.op(num(llx), num(lly), num(width), num(height), "re", "W", "n")
}

func (w *contentWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// num formats a content stream number without exponent and with at most
// four decimals.
func num(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

// literal renders b as a PDF literal string. Delimiters are escaped and
// non-printable bytes written as octal escapes.
func literal(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, c := range b {
		switch {
		case c == '(' || c == ')' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c < 0x20 || c > 0x7e:
			fmt.Fprintf(&sb, "\\%03o", c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// splitLines splits annotation text on line breaks.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}
