package dump

import (
	"errors"
	"strings"
	"testing"

	"github.com/danielribes/ephp/pkg/phparray"
	"github.com/danielribes/ephp/pkg/value"
)

func sampleArray() value.Value {
	inner := value.NewArray()
	inner.ArrayForWrite().Append(value.Str("x"))

	outer := value.NewArray()
	w := outer.ArrayForWrite()
	w.Append(value.Str("a"))
	w.Store(phparray.TextKey("k"), inner)
	return outer
}

func selfReferential() value.Value {
	a := value.NewArray()
	a.ArrayForWrite().Append(a.Share())
	return a
}

func TestPrintRScalars(t *testing.T) {
	d := NewDumper()
	cases := []struct {
		v    value.Value
		want string
	}{
		{value.Null, ""},
		{value.Bool(false), ""},
		{value.Bool(true), "1"},
		{value.Int(42), "42"},
		{value.Float(2.5), "2.5"},
		{value.Str("hi"), "hi"},
	}
	for _, tc := range cases {
		if got := d.SPrintR(tc.v); got != tc.want {
			t.Errorf("SPrintR(%s) = %q, want %q", tc.v.TypeName(), got, tc.want)
		}
	}
}

func TestPrintRArray(t *testing.T) {
	want := "Array\n" +
		"(\n" +
		"    [0] => a\n" +
		"    [k] => Array\n" +
		"        (\n" +
		"            [0] => x\n" +
		"        )\n" +
		"\n" +
		")\n"
	if got := NewDumper().SPrintR(sampleArray()); got != want {
		t.Errorf("SPrintR mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrintRCycle(t *testing.T) {
	got := NewDumper().SPrintR(selfReferential())
	want := "Array\n" +
		"(\n" +
		"    [0] => Array\n" +
		" *RECURSION*\n" +
		")\n"
	if got != want {
		t.Errorf("SPrintR cycle mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestVarDumpScalars(t *testing.T) {
	d := NewDumper()
	var b strings.Builder
	err := d.VarDump(&b,
		value.Null,
		value.Bool(true),
		value.Int(-3),
		value.Float(0.1),
		value.Str("héllo"),
	)
	if err != nil {
		t.Fatalf("VarDump: %v", err)
	}
	want := "NULL\n" +
		"bool(true)\n" +
		"int(-3)\n" +
		"float(0.1)\n" +
		"string(6) \"héllo\"\n"
	if got := b.String(); got != want {
		t.Errorf("VarDump mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestVarDumpArray(t *testing.T) {
	var b strings.Builder
	if err := NewDumper().VarDump(&b, sampleArray()); err != nil {
		t.Fatalf("VarDump: %v", err)
	}
	want := "array(2) {\n" +
		"  [0]=>\n" +
		"  string(1) \"a\"\n" +
		"  [\"k\"]=>\n" +
		"  array(1) {\n" +
		"    [0]=>\n" +
		"    string(1) \"x\"\n" +
		"  }\n" +
		"}\n"
	if got := b.String(); got != want {
		t.Errorf("VarDump mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestVarDumpCycle(t *testing.T) {
	var b strings.Builder
	if err := NewDumper().VarDump(&b, selfReferential()); err != nil {
		t.Fatalf("VarDump: %v", err)
	}
	want := "array(1) {\n" +
		"  [0]=>\n" +
		"  *RECURSION*\n" +
		"}\n"
	if got := b.String(); got != want {
		t.Errorf("VarDump cycle mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestVarExportScalars(t *testing.T) {
	d := NewDumper()
	cases := []struct {
		v    value.Value
		want string
	}{
		{value.Null, "NULL"},
		{value.Bool(true), "true"},
		{value.Bool(false), "false"},
		{value.Int(42), "42"},
		{value.Float(2.5), "2.5"},
		{value.Float(100), "100.0"},
		{value.Str("it's"), `'it\'s'`},
		{value.Str(`back\slash`), `'back\\slash'`},
	}
	for _, tc := range cases {
		if got := d.SVarExport(tc.v); got != tc.want {
			t.Errorf("SVarExport(%s) = %q, want %q", tc.v.TypeName(), got, tc.want)
		}
	}
}

func TestVarExportArray(t *testing.T) {
	want := "array (\n" +
		"  0 => 'a',\n" +
		"  'k' => \n" +
		"  array (\n" +
		"    0 => 'x',\n" +
		"  ),\n" +
		")"
	if got := NewDumper().SVarExport(sampleArray()); got != want {
		t.Errorf("SVarExport mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestVarExportCycleDegradesToNull(t *testing.T) {
	want := "array (\n" +
		"  0 => NULL,\n" +
		")"
	if got := NewDumper().SVarExport(selfReferential()); got != want {
		t.Errorf("SVarExport cycle mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestDumperReportsWriteError(t *testing.T) {
	d := NewDumper()
	if err := d.VarDump(failingWriter{}, value.Int(1)); err == nil {
		t.Error("expected the writer error to surface")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("pipe closed")
}
