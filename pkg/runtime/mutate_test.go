package runtime

import (
	"errors"
	"testing"

	"github.com/danielribes/ephp/pkg/phparray"
	"github.com/danielribes/ephp/pkg/value"
)

// entriesOf returns the array value's entries in order, failing the test
// when v is not an array.
func entriesOf(t *testing.T, v value.Value) []phparray.Entry[value.Value] {
	t.Helper()
	a := v.ArrayForRead()
	if a == nil {
		t.Fatalf("expected an array, got %v", v)
	}
	return a.ToList()
}

func TestArrayPushAppendsInOrder(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := listOf(value.Int(1))

	n, err := rt.ArrayPush(&arr, value.Int(2), value.Int(3))
	if err != nil {
		t.Fatalf("ArrayPush: %v", err)
	}
	if n != 3 {
		t.Errorf("new count %d, want 3", n)
	}
	list := entriesOf(t, arr)
	for i, want := range []int64{1, 2, 3} {
		if list[i].Key != phparray.IntKey(int64(i)) || list[i].Value.IntVal() != want {
			t.Errorf("slot %d: %v => %v", i, list[i].Key, list[i].Value)
		}
	}

	scalar := value.Int(1)
	if _, err := rt.ArrayPush(&scalar, value.Int(2)); !errors.Is(err, ErrNotArray) {
		t.Errorf("push onto int: %v", err)
	}
}

func TestArrayPopFreesTheTopKey(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := listOf(value.Str("a"), value.Str("b"), value.Str("c"))

	got, err := rt.ArrayPop(&arr)
	if err != nil {
		t.Fatalf("ArrayPop: %v", err)
	}
	if got.StrVal() != "c" {
		t.Errorf("popped %v", got)
	}

	// The freed key is reused by the next append, unlike an erase, which
	// never lowers the watermark.
	k := arr.ArrayForWrite().Append(value.Str("c2"))
	if k != phparray.IntKey(2) {
		t.Errorf("append after pop got key %v, want 2", k)
	}
}

func TestArrayPopResetsThePointer(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := listOf(value.Int(1), value.Int(2), value.Int(3))

	rt.End(&arr)
	if _, err := rt.ArrayPop(&arr); err != nil {
		t.Fatalf("ArrayPop: %v", err)
	}
	if got := rt.Current(arr); !value.StrictEquals(got, value.Int(1)) {
		t.Errorf("pointer should sit on the first entry after pop, got %v", got)
	}
}

func TestArrayPopEmptyAndOwnership(t *testing.T) {
	rt, _ := newTestRuntime(t)

	empty := value.NewArray()
	got, err := rt.ArrayPop(&empty)
	if err != nil {
		t.Fatalf("ArrayPop: %v", err)
	}
	if !got.IsNull() {
		t.Errorf("pop of empty should be null, got %v", got)
	}

	// The container's claim on the popped value ends with the pop: only
	// the local handle owns the inner array afterwards.
	inner := listOf(value.Int(1))
	outer := listOf(inner)
	popped, err := rt.ArrayPop(&outer)
	if err != nil {
		t.Fatalf("ArrayPop: %v", err)
	}
	if !value.StrictEquals(popped, inner) {
		t.Error("popped a different value")
	}
	if inner.RefCount() != 1 {
		t.Errorf("inner refcount %d after pop, want 1", inner.RefCount())
	}
}

func TestArrayShiftRenumbersIntegerKeys(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := phparray.New[value.Value]()
	arr.Store(phparray.IntKey(5), value.Str("x"))
	arr.Store(phparray.TextKey("k"), value.Str("y"))
	arr.Store(phparray.IntKey(8), value.Str("z"))
	v := value.Arr(arr)

	got, err := rt.ArrayShift(&v)
	if err != nil {
		t.Fatalf("ArrayShift: %v", err)
	}
	if got.StrVal() != "x" {
		t.Errorf("shifted %v", got)
	}

	// Text keys stay, integer keys restart from zero, order holds.
	list := entriesOf(t, v)
	if len(list) != 2 {
		t.Fatalf("expected 2 remaining entries, got %d", len(list))
	}
	if list[0].Key != phparray.TextKey("k") || list[0].Value.StrVal() != "y" {
		t.Errorf("slot 0: %v => %v", list[0].Key, list[0].Value)
	}
	if list[1].Key != phparray.IntKey(0) || list[1].Value.StrVal() != "z" {
		t.Errorf("slot 1: %v => %v", list[1].Key, list[1].Value)
	}

	// The pointer sits on the first remaining entry.
	if cur := rt.Current(v); !value.StrictEquals(cur, value.Str("y")) {
		t.Errorf("pointer after shift: %v", cur)
	}

	// Drain the two remaining entries, then shift once more.
	if got, _ := rt.ArrayShift(&v); got.StrVal() != "y" {
		t.Errorf("second shift: %v", got)
	}
	if got, _ := rt.ArrayShift(&v); got.StrVal() != "z" {
		t.Errorf("third shift: %v", got)
	}
	got, err = rt.ArrayShift(&v)
	if err != nil {
		t.Fatalf("ArrayShift on empty: %v", err)
	}
	if !got.IsNull() {
		t.Errorf("shift of empty should be null, got %v", got)
	}
}

func TestArrayShiftSeparatesSharedValues(t *testing.T) {
	rt, _ := newTestRuntime(t)
	a := listOf(value.Int(1), value.Int(2))
	b := a.Share()

	if _, err := rt.ArrayShift(&a); err != nil {
		t.Fatalf("ArrayShift: %v", err)
	}
	if a.ArrayForRead().Len() != 1 {
		t.Errorf("shifted copy has %d entries", a.ArrayForRead().Len())
	}
	if b.ArrayForRead().Len() != 2 {
		t.Errorf("alias was mutated: %d entries", b.ArrayForRead().Len())
	}
}

func TestArrayUnshiftPrepends(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := phparray.New[value.Value]()
	arr.Store(phparray.IntKey(5), value.Str("x"))
	arr.Store(phparray.TextKey("k"), value.Str("y"))
	v := value.Arr(arr)

	n, err := rt.ArrayUnshift(&v, value.Str("new"), value.Str("er"))
	if err != nil {
		t.Fatalf("ArrayUnshift: %v", err)
	}
	if n != 4 {
		t.Errorf("new count %d, want 4", n)
	}

	list := entriesOf(t, v)
	wantOrder := []struct {
		key phparray.Key
		val string
	}{
		{phparray.IntKey(0), "new"},
		{phparray.IntKey(1), "er"},
		{phparray.IntKey(2), "x"},
		{phparray.TextKey("k"), "y"},
	}
	for i, want := range wantOrder {
		if list[i].Key != want.key || list[i].Value.StrVal() != want.val {
			t.Errorf("slot %d: %v => %v", i, list[i].Key, list[i].Value)
		}
	}
	if cur := rt.Current(v); !value.StrictEquals(cur, value.Str("new")) {
		t.Errorf("pointer after unshift: %v", cur)
	}
}

func TestArrayMergeRenumbersAndOverwrites(t *testing.T) {
	rt, _ := newTestRuntime(t)

	first := phparray.New[value.Value]()
	first.Store(phparray.TextKey("color"), value.Str("red"))
	first.Append(value.Int(2))
	first.Append(value.Int(4))

	second := phparray.New[value.Value]()
	second.Store(phparray.TextKey("color"), value.Str("green"))
	second.Append(value.Int(6))

	merged, err := rt.ArrayMerge(value.Arr(first), value.Arr(second))
	if err != nil {
		t.Fatalf("ArrayMerge: %v", err)
	}
	list := entriesOf(t, merged)

	// The repeated text key keeps its first position with the later
	// value; integer keys renumber in arrival order.
	wantOrder := []struct {
		key phparray.Key
		val value.Value
	}{
		{phparray.TextKey("color"), value.Str("green")},
		{phparray.IntKey(0), value.Int(2)},
		{phparray.IntKey(1), value.Int(4)},
		{phparray.IntKey(2), value.Int(6)},
	}
	if len(list) != len(wantOrder) {
		t.Fatalf("merged length %d", len(list))
	}
	for i, want := range wantOrder {
		if list[i].Key != want.key || !value.StrictEquals(list[i].Value, want.val) {
			t.Errorf("slot %d: %v => %v", i, list[i].Key, list[i].Value)
		}
	}

	// No arguments make an empty array, and a non-array argument refuses
	// the whole call.
	empty, err := rt.ArrayMerge()
	if err != nil || empty.ArrayForRead().Len() != 0 {
		t.Errorf("zero-arg merge: %v, %v", empty, err)
	}
	if _, err := rt.ArrayMerge(value.Arr(first), value.Int(3)); !errors.Is(err, ErrNotArray) {
		t.Errorf("merge with int: %v", err)
	}
}

func TestArrayReverse(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := phparray.New[value.Value]()
	arr.Append(value.Str("a"))
	arr.Store(phparray.TextKey("k"), value.Str("v"))
	arr.Append(value.Str("b"))
	v := value.Arr(arr)

	rev, err := rt.ArrayReverse(v, false)
	if err != nil {
		t.Fatalf("ArrayReverse: %v", err)
	}
	list := entriesOf(t, rev)
	wantOrder := []struct {
		key phparray.Key
		val string
	}{
		{phparray.IntKey(0), "b"},
		{phparray.TextKey("k"), "v"},
		{phparray.IntKey(1), "a"},
	}
	for i, want := range wantOrder {
		if list[i].Key != want.key || list[i].Value.StrVal() != want.val {
			t.Errorf("slot %d: %v => %v", i, list[i].Key, list[i].Value)
		}
	}

	// preserveKeys keeps the original integer keys in the new order.
	rev, err = rt.ArrayReverse(v, true)
	if err != nil {
		t.Fatalf("ArrayReverse preserve: %v", err)
	}
	list = entriesOf(t, rev)
	if list[0].Key != phparray.IntKey(1) || list[2].Key != phparray.IntKey(0) {
		t.Errorf("preserved keys: %v / %v", list[0].Key, list[2].Key)
	}

	// The input is untouched either way.
	if got := entriesOf(t, v); got[0].Value.StrVal() != "a" {
		t.Error("reverse mutated its input")
	}
}

func TestArraySlice(t *testing.T) {
	rt, _ := newTestRuntime(t)
	v := listOf(value.Int(10), value.Int(20), value.Int(30), value.Int(40), value.Int(50))

	testCases := []struct {
		name     string
		offset   int64
		length   int64
		preserve bool
		want     []int64
	}{
		{"middle run", 1, 2, false, []int64{20, 30}},
		{"negative offset", -2, SliceAll, false, []int64{40, 50}},
		{"negative length stops short", 1, -1, false, []int64{20, 30, 40}},
		{"zero length selects nothing", 0, 0, false, nil},
		{"offset past the end", 10, SliceAll, false, nil},
		{"negative offset clamps", -10, SliceAll, false, []int64{10, 20, 30, 40, 50}},
		{"length past the end", 3, 99, false, []int64{40, 50}},
	}
	for _, tc := range testCases {
		got, err := rt.ArraySlice(v, tc.offset, tc.length, tc.preserve)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		list := entriesOf(t, got)
		if len(list) != len(tc.want) {
			t.Errorf("%s: %d entries, want %d", tc.name, len(list), len(tc.want))
			continue
		}
		for i, want := range tc.want {
			if list[i].Key != phparray.IntKey(int64(i)) || list[i].Value.IntVal() != want {
				t.Errorf("%s slot %d: %v => %v", tc.name, i, list[i].Key, list[i].Value)
			}
		}
	}
}

func TestArraySlicePreservesKeys(t *testing.T) {
	rt, _ := newTestRuntime(t)
	arr := phparray.New[value.Value]()
	arr.Append(value.Str("a"))
	arr.Store(phparray.TextKey("k"), value.Str("v"))
	arr.Append(value.Str("b"))
	v := value.Arr(arr)

	// Text keys survive even without preserveKeys.
	got, err := rt.ArraySlice(v, 1, SliceAll, false)
	if err != nil {
		t.Fatalf("ArraySlice: %v", err)
	}
	list := entriesOf(t, got)
	if list[0].Key != phparray.TextKey("k") || list[1].Key != phparray.IntKey(0) {
		t.Errorf("keys without preserve: %v / %v", list[0].Key, list[1].Key)
	}

	got, err = rt.ArraySlice(v, 2, SliceAll, true)
	if err != nil {
		t.Fatalf("ArraySlice preserve: %v", err)
	}
	list = entriesOf(t, got)
	if list[0].Key != phparray.IntKey(1) {
		t.Errorf("preserved key: %v", list[0].Key)
	}
}

func TestArrayFill(t *testing.T) {
	rt, _ := newTestRuntime(t)

	got, err := rt.ArrayFill(5, 3, value.Str("v"))
	if err != nil {
		t.Fatalf("ArrayFill: %v", err)
	}
	list := entriesOf(t, got)
	for i, wantKey := range []int64{5, 6, 7} {
		if list[i].Key != phparray.IntKey(wantKey) || list[i].Value.StrVal() != "v" {
			t.Errorf("slot %d: %v => %v", i, list[i].Key, list[i].Value)
		}
	}
	// The watermark follows the filled keys.
	if k := got.ArrayForWrite().Append(value.Str("next")); k != phparray.IntKey(8) {
		t.Errorf("append after fill got key %v, want 8", k)
	}

	// Negative starts fill forward from the start key.
	got, err = rt.ArrayFill(-2, 3, value.Int(0))
	if err != nil {
		t.Fatalf("ArrayFill negative start: %v", err)
	}
	list = entriesOf(t, got)
	for i, wantKey := range []int64{-2, -1, 0} {
		if list[i].Key != phparray.IntKey(wantKey) {
			t.Errorf("slot %d key %v, want %d", i, list[i].Key, wantKey)
		}
	}

	if got, err := rt.ArrayFill(0, 0, value.Int(1)); err != nil || got.ArrayForRead().Len() != 0 {
		t.Errorf("zero count: %v, %v", got, err)
	}
	if _, err := rt.ArrayFill(0, -1, value.Int(1)); !errors.Is(err, ErrBadCount) {
		t.Errorf("negative count: %v", err)
	}
}

func TestArrayCombine(t *testing.T) {
	rt, _ := newTestRuntime(t)

	keys := listOf(value.Str("a"), value.Str("5"), value.Float(2.9))
	vals := listOf(value.Int(1), value.Int(2), value.Int(3))

	got, err := rt.ArrayCombine(keys, vals)
	if err != nil {
		t.Fatalf("ArrayCombine: %v", err)
	}
	a := got.ArrayForRead()

	// Key values coerce like assignment keys: "5" normalizes to the
	// integer key 5, 2.9 truncates to 2.
	if v, ok := a.Find(phparray.TextKey("a")); !ok || v.IntVal() != 1 {
		t.Errorf("text key: %v %v", v, ok)
	}
	if v, ok := a.Find(phparray.IntKey(5)); !ok || v.IntVal() != 2 {
		t.Errorf("numeric string key: %v %v", v, ok)
	}
	if v, ok := a.Find(phparray.IntKey(2)); !ok || v.IntVal() != 3 {
		t.Errorf("float key: %v %v", v, ok)
	}

	// Size mismatch and array keys are refused.
	if _, err := rt.ArrayCombine(listOf(value.Str("a")), vals); !errors.Is(err, ErrCountMismatch) {
		t.Errorf("size mismatch: %v", err)
	}
	badKeys := listOf(value.NewArray())
	if _, err := rt.ArrayCombine(badKeys, listOf(value.Int(1))); !errors.Is(err, ErrIllegalOffset) {
		t.Errorf("array key: %v", err)
	}

	// A repeated key keeps its first position with the later value.
	dup, err := rt.ArrayCombine(listOf(value.Str("k"), value.Str("k")), listOf(value.Int(1), value.Int(2)))
	if err != nil {
		t.Fatalf("ArrayCombine dup: %v", err)
	}
	list := entriesOf(t, dup)
	if len(list) != 1 || list[0].Value.IntVal() != 2 {
		t.Errorf("duplicate key handling: %v", list)
	}
}
