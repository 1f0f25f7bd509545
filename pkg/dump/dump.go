// Package dump renders values for humans: print_r, var_dump and var_export
// style output with cycle detection.
package dump

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/danielribes/ephp/pkg/phparray"
	"github.com/danielribes/ephp/pkg/value"
)

// Dumper renders values with a fixed precision pair: Precision drives the
// echo-style rendering used by PrintR, SerializePrecision drives the
// round-trip rendering used by VarDump and VarExport.
type Dumper struct {
	Precision          int
	SerializePrecision int
}

// NewDumper returns a dumper with the default precision pair.
func NewDumper() *Dumper {
	return &Dumper{
		Precision:          value.DefaultPrecision,
		SerializePrecision: -1,
	}
}

// printer tracks the output sink, the first write error and the arrays
// currently being walked so cycles are reported instead of recursed into.
type printer struct {
	w       io.Writer
	err     error
	walking map[*phparray.Array[value.Value]]bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, walking: make(map[*phparray.Array[value.Value]]bool)}
}

func (p *printer) writef(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) enter(a *phparray.Array[value.Value]) bool {
	if p.walking[a] {
		return false
	}
	p.walking[a] = true
	return true
}

func (p *printer) leave(a *phparray.Array[value.Value]) {
	delete(p.walking, a)
}

// PrintR writes the print_r rendering of v. Scalars render as echo would;
// arrays render as an indented key/value listing.
func (d *Dumper) PrintR(w io.Writer, v value.Value) error {
	p := newPrinter(w)
	d.printR(p, v, 0)
	return p.err
}

// SPrintR returns the print_r rendering as a string.
func (d *Dumper) SPrintR(v value.Value) string {
	var b strings.Builder
	d.PrintR(&b, v)
	return b.String()
}

func (d *Dumper) printR(p *printer, v value.Value, depth int) {
	if !v.IsArray() {
		p.writef("%s", value.AsString(v, d.Precision))
		return
	}

	arr := v.ArrayForRead()
	if !p.enter(arr) {
		p.writef("Array\n *RECURSION*")
		return
	}
	defer p.leave(arr)

	// entry lines sit four columns past the parens, nesting adds eight
	pad := strings.Repeat(" ", 8*depth)
	p.writef("Array\n%s(\n", pad)
	for k, el := range arr.All() {
		p.writef("%s    [%s] => ", pad, printRKey(k))
		d.printR(p, el, depth+1)
		p.writef("\n")
	}
	p.writef("%s)\n", pad)
}

func printRKey(k phparray.Key) string {
	if k.Kind() == phparray.KindInt {
		return fmt.Sprintf("%d", k.Int())
	}
	return k.Text()
}

// VarDump writes the var_dump rendering of each value in turn, one per
// line block, with types and string byte lengths.
func (d *Dumper) VarDump(w io.Writer, vals ...value.Value) error {
	p := newPrinter(w)
	for _, v := range vals {
		d.varDump(p, v, 0)
	}
	return p.err
}

func (d *Dumper) varDump(p *printer, v value.Value, depth int) {
	pad := strings.Repeat(" ", 2*depth)
	switch v.Tag {
	case value.TagNull:
		p.writef("%sNULL\n", pad)
	case value.TagBool:
		if v.BoolVal() {
			p.writef("%sbool(true)\n", pad)
		} else {
			p.writef("%sbool(false)\n", pad)
		}
	case value.TagInt:
		p.writef("%sint(%d)\n", pad, v.IntVal())
	case value.TagFloat:
		p.writef("%sfloat(%s)\n", pad, value.FormatFloat(v.FloatVal(), d.SerializePrecision))
	case value.TagString:
		s := v.StrVal()
		p.writef("%sstring(%d) \"%s\"\n", pad, len(s), s)
	case value.TagArray:
		arr := v.ArrayForRead()
		if !p.enter(arr) {
			p.writef("%s*RECURSION*\n", pad)
			return
		}
		p.writef("%sarray(%d) {\n", pad, arr.Len())
		for k, el := range arr.All() {
			p.writef("%s  [%s]=>\n", pad, varDumpKey(k))
			d.varDump(p, el, depth+1)
		}
		p.writef("%s}\n", pad)
		p.leave(arr)
	}
}

func varDumpKey(k phparray.Key) string {
	if k.Kind() == phparray.KindInt {
		return fmt.Sprintf("%d", k.Int())
	}
	return `"` + k.Text() + `"`
}

// VarExport writes v as parseable source text. Cycles export as NULL, the
// way the reference renderer degrades after its recursion warning.
func (d *Dumper) VarExport(w io.Writer, v value.Value) error {
	p := newPrinter(w)
	d.varExport(p, v, 0)
	return p.err
}

// SVarExport returns the var_export rendering as a string.
func (d *Dumper) SVarExport(v value.Value) string {
	var b strings.Builder
	d.VarExport(&b, v)
	return b.String()
}

func (d *Dumper) varExport(p *printer, v value.Value, depth int) {
	pad := strings.Repeat(" ", 2*depth)
	switch v.Tag {
	case value.TagNull:
		p.writef("NULL")
	case value.TagBool:
		if v.BoolVal() {
			p.writef("true")
		} else {
			p.writef("false")
		}
	case value.TagInt:
		p.writef("%d", v.IntVal())
	case value.TagFloat:
		p.writef("%s", exportFloat(v.FloatVal(), d.SerializePrecision))
	case value.TagString:
		p.writef("'%s'", exportQuote(v.StrVal()))
	case value.TagArray:
		arr := v.ArrayForRead()
		if !p.enter(arr) {
			p.writef("NULL")
			return
		}
		p.writef("array (\n")
		for k, el := range arr.All() {
			p.writef("%s  %s => ", pad, exportKey(k))
			// A nested array opens on its own line, but a cycle degrades
			// to a bare NULL and stays on the key's line.
			if el.IsArray() && !p.walking[el.ArrayForRead()] {
				p.writef("\n%s  ", pad)
			}
			d.varExport(p, el, depth+1)
			p.writef(",\n")
		}
		p.writef("%s)", pad)
		p.leave(arr)
	}
}

// exportFloat keeps a decimal point on integral floats so the text reads
// back as a float.
func exportFloat(f float64, precision int) string {
	s := value.FormatFloat(f, precision)
	if !math.IsNaN(f) && !math.IsInf(f, 0) && !strings.ContainsAny(s, ".E") {
		s += ".0"
	}
	return s
}

func exportQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func exportKey(k phparray.Key) string {
	if k.Kind() == phparray.KindInt {
		return fmt.Sprintf("%d", k.Int())
	}
	return "'" + exportQuote(k.Text()) + "'"
}
