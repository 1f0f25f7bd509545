package runtime

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/danielribes/ephp/pkg/common/log"
	"github.com/danielribes/ephp/pkg/config"
	"github.com/danielribes/ephp/pkg/phparray"
	"github.com/danielribes/ephp/pkg/session"
	"github.com/danielribes/ephp/pkg/value"
)

func newTestRuntime(t *testing.T) (*Runtime, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewDefaultConfig(dir)

	manifest, err := config.NewManifest(dir, cfg)
	if err != nil {
		t.Fatalf("Failed to create manifest: %v", err)
	}

	var sink bytes.Buffer
	rt, err := New(manifest,
		WithOutput(&sink),
		WithLogger(log.NewStandardLogger(log.WithOutput(io.Discard))),
	)
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close(context.Background()) })
	return rt, &sink
}

// listOf builds an array value from the given entries in order.
func listOf(vals ...value.Value) value.Value {
	return value.ArrayOf(vals...)
}

func TestAssignLookupUnset(t *testing.T) {
	rt, _ := newTestRuntime(t)

	rt.Assign("name", value.Str("ada"))
	if got := rt.Lookup("name"); !value.StrictEquals(got, value.Str("ada")) {
		t.Errorf("Lookup after Assign: %v", got)
	}
	if !rt.IsSet("name") {
		t.Error("assigned variable should be set")
	}

	// A name that was never assigned reads as null and is not set.
	if got := rt.Lookup("missing"); !got.IsNull() {
		t.Errorf("missing variable should read null, got %v", got)
	}
	if rt.IsSet("missing") {
		t.Error("missing variable reported as set")
	}

	rt.Unset("name")
	if rt.IsSet("name") {
		t.Error("unset variable still reported as set")
	}
}

func TestAssignRefAliasesBothWays(t *testing.T) {
	rt, _ := newTestRuntime(t)

	rt.Assign("a", value.Int(1))
	rt.AssignRef("b", "a")

	// A write through either name is visible through the other.
	rt.Assign("b", value.Int(2))
	if got := rt.Lookup("a"); !value.StrictEquals(got, value.Int(2)) {
		t.Errorf("write through the alias not visible: %v", got)
	}
	rt.Assign("a", value.Int(3))
	if got := rt.Lookup("b"); !value.StrictEquals(got, value.Int(3)) {
		t.Errorf("write through the original not visible: %v", got)
	}
}

func TestAssignRefVivifiesMissingSource(t *testing.T) {
	rt, _ := newTestRuntime(t)

	rt.AssignRef("alias", "never_assigned")
	if got := rt.Lookup("never_assigned"); !got.IsNull() {
		t.Errorf("reference target should be defined as null, got %v", got)
	}
	rt.Assign("alias", value.Str("x"))
	if got := rt.Lookup("never_assigned"); !value.StrictEquals(got, value.Str("x")) {
		t.Errorf("vivified target should alias: %v", got)
	}
}

func TestAssignSharesArrayPayload(t *testing.T) {
	rt, _ := newTestRuntime(t)

	arr := listOf(value.Int(1))
	rt.Assign("a", arr)
	if arr.RefCount() != 2 {
		t.Errorf("expected caller + cell = 2 owners, got %d", arr.RefCount())
	}

	// Assigning the same value elsewhere shares again; the copies only
	// split when one of them is written.
	rt.Assign("b", rt.Lookup("a"))
	if arr.RefCount() != 3 {
		t.Errorf("expected 3 owners after second assign, got %d", arr.RefCount())
	}
}

func TestEchoWritesLooseStrings(t *testing.T) {
	rt, sink := newTestRuntime(t)

	if err := rt.Echo(value.Str("x="), value.Int(5), value.Str(" "), value.Bool(true), value.Float(1.5)); err != nil {
		t.Fatalf("Echo: %v", err)
	}
	if got := sink.String(); got != "x=5 11.5" {
		t.Errorf("echo output %q", got)
	}
}

func TestEchoRespectsOutputBuffering(t *testing.T) {
	rt, sink := newTestRuntime(t)

	rt.Output().Start(0)
	if err := rt.Echo(value.Str("captured")); err != nil {
		t.Fatalf("Echo: %v", err)
	}
	if sink.Len() != 0 {
		t.Errorf("echo leaked past the buffer: %q", sink.String())
	}
	got, err := rt.Output().GetClean()
	if err != nil {
		t.Fatalf("GetClean: %v", err)
	}
	if got != "captured" {
		t.Errorf("buffered echo %q", got)
	}
}

func TestPrintRWriteAndReturnModes(t *testing.T) {
	rt, sink := newTestRuntime(t)
	arr := listOf(value.Str("a"))

	ret, err := rt.PrintR(arr, false)
	if err != nil {
		t.Fatalf("PrintR: %v", err)
	}
	if !value.StrictEquals(ret, value.Bool(true)) {
		t.Errorf("write mode should return true, got %v", ret)
	}
	want := "Array\n(\n    [0] => a\n)\n"
	if sink.String() != want {
		t.Errorf("PrintR wrote %q, want %q", sink.String(), want)
	}

	sink.Reset()
	ret, err = rt.PrintR(arr, true)
	if err != nil {
		t.Fatalf("PrintR ret: %v", err)
	}
	if sink.Len() != 0 {
		t.Error("return mode should not write")
	}
	if !value.StrictEquals(ret, value.Str(want)) {
		t.Errorf("return mode got %v", ret)
	}
}

func TestVarDumpWritesTypedForm(t *testing.T) {
	rt, sink := newTestRuntime(t)

	if err := rt.VarDump(value.Int(5), value.Str("a")); err != nil {
		t.Fatalf("VarDump: %v", err)
	}
	want := "int(5)\nstring(1) \"a\"\n"
	if sink.String() != want {
		t.Errorf("VarDump wrote %q", sink.String())
	}
}

func TestVarExportModes(t *testing.T) {
	rt, sink := newTestRuntime(t)

	ret, err := rt.VarExport(value.Str("it's"), true)
	if err != nil {
		t.Fatalf("VarExport ret: %v", err)
	}
	if !value.StrictEquals(ret, value.Str(`'it\'s'`)) {
		t.Errorf("VarExport return %v", ret)
	}

	ret, err = rt.VarExport(value.Int(3), false)
	if err != nil {
		t.Fatalf("VarExport: %v", err)
	}
	if !ret.IsNull() {
		t.Errorf("write mode should return null, got %v", ret)
	}
	if sink.String() != "3" {
		t.Errorf("VarExport wrote %q", sink.String())
	}
}

func TestSerializeRoundTripThroughRuntime(t *testing.T) {
	rt, _ := newTestRuntime(t)

	arr := phparray.New[value.Value]()
	arr.Store(phparray.TextKey("k"), value.Str("v"))
	arr.Append(value.Int(7))

	s, err := rt.Serialize(value.Arr(arr))
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if want := `a:2:{s:1:"k";s:1:"v";i:0;i:7;}`; s.StrVal() != want {
		t.Errorf("Serialize got %q, want %q", s.StrVal(), want)
	}

	back := rt.Unserialize(s.StrVal())
	if !value.StrictEquals(back, value.Arr(arr)) {
		t.Error("round trip changed the value")
	}
}

func TestUnserializeFailureYieldsFalse(t *testing.T) {
	rt, _ := newTestRuntime(t)

	got := rt.Unserialize("i:banana;")
	if !value.StrictEquals(got, value.Bool(false)) {
		t.Errorf("malformed input should come back false, got %v", got)
	}
	errs, _ := rt.Stats()["errors"].(map[string]uint64)
	if errs["unserialize_failed"] == 0 {
		t.Errorf("failure should be counted, errors: %v", errs)
	}
}

func TestSessionSaveLoadRoundTrip(t *testing.T) {
	rt, _ := newTestRuntime(t)
	ctx := context.Background()

	rt.Assign("user", value.Str("ada"))
	rt.Assign("visits", value.Int(3))
	rt.Assign("cart", listOf(value.Str("book"), value.Str("pen")))

	if err := rt.SaveSession(ctx, "abc"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	// Mutating after the save must not bleed into the stored snapshot.
	rt.Assign("user", value.Str("bob"))
	rt.Assign("extra", value.Int(9))

	if err := rt.LoadSession(ctx, "abc"); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got := rt.Lookup("user"); !value.StrictEquals(got, value.Str("ada")) {
		t.Errorf("user after load: %v", got)
	}
	if rt.IsSet("extra") {
		t.Error("load should replace the whole scope, extra survived")
	}
	cart := rt.Lookup("cart")
	if !cart.IsArray() || cart.ArrayForRead().Len() != 2 {
		t.Errorf("cart did not survive the round trip: %v", cart)
	}
}

func TestSessionSaveNormalizesNumericNames(t *testing.T) {
	rt, _ := newTestRuntime(t)
	ctx := context.Background()

	// A global named "5" snapshots under the integer key 5 and comes back
	// under the same name.
	rt.Assign("5", value.Str("five"))
	if err := rt.SaveSession(ctx, "numeric"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	rt.Unset("5")
	if err := rt.LoadSession(ctx, "numeric"); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got := rt.Lookup("5"); !value.StrictEquals(got, value.Str("five")) {
		t.Errorf("numeric-named global lost in round trip: %v", got)
	}
}

func TestLoadMissingSession(t *testing.T) {
	rt, _ := newTestRuntime(t)

	err := rt.LoadSession(context.Background(), "nope")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDestroySession(t *testing.T) {
	rt, _ := newTestRuntime(t)
	ctx := context.Background()

	rt.Assign("k", value.Int(1))
	if err := rt.SaveSession(ctx, "gone"); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := rt.DestroySession(ctx, "gone"); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}
	if err := rt.LoadSession(ctx, "gone"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("destroyed session still loads: %v", err)
	}

	// Destroying an id that never existed is quiet.
	if err := rt.DestroySession(ctx, "never"); err != nil {
		t.Errorf("destroy of unknown id: %v", err)
	}
}

func TestStatsCountBuiltinCalls(t *testing.T) {
	rt, _ := newTestRuntime(t)

	rt.Assign("a", value.Int(1))
	rt.Lookup("a")
	rt.Lookup("a")

	got := rt.Stats()
	if n, ok := got["store_ops"].(uint64); !ok || n == 0 {
		t.Errorf("store ops not counted: %v", got["store_ops"])
	}
	if n, ok := got["fetch_ops"].(uint64); !ok || n < 2 {
		t.Errorf("fetch ops not counted: %v", got["fetch_ops"])
	}
}
