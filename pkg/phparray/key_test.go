package phparray

import "testing"

func TestKeyTagsNeverCrossEqual(t *testing.T) {
	// An integer key and a text key never compare equal, even when the
	// text spells the same digits.
	if IntKey(5) == TextKey("5") {
		t.Error("IntKey(5) compared equal to TextKey(\"5\")")
	}

	a := New[string]()
	a.Store(TextKey("5"), "text")
	a.Store(IntKey(5), "int")

	if a.Len() != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", a.Len())
	}
	if v, _ := a.Find(TextKey("5")); v != "text" {
		t.Errorf("TextKey(\"5\") resolved to %q", v)
	}
	if v, _ := a.Find(IntKey(5)); v != "int" {
		t.Errorf("IntKey(5) resolved to %q", v)
	}
}

func TestKeyAccessors(t *testing.T) {
	k := IntKey(42)
	if k.Kind() != KindInt || k.Int() != 42 {
		t.Errorf("IntKey(42): kind %v, int %d", k.Kind(), k.Int())
	}

	s := TextKey("name")
	if s.Kind() != KindText || s.Text() != "name" {
		t.Errorf("TextKey(\"name\"): kind %v, text %q", s.Kind(), s.Text())
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Key
	}{
		{"zero", "0", IntKey(0)},
		{"small integer", "7", IntKey(7)},
		{"multi digit", "123", IntKey(123)},
		{"max int64", "9223372036854775807", IntKey(9223372036854775807)},
		{"leading zero stays text", "0123", TextKey("0123")},
		{"double zero stays text", "00", TextKey("00")},
		{"plus sign stays text", "+1", TextKey("+1")},
		{"minus sign stays text", "-5", TextKey("-5")},
		{"empty stays text", "", TextKey("")},
		{"overflow stays text", "9223372036854775808", TextKey("9223372036854775808")},
		{"huge digits stay text", "99999999999999999999", TextKey("99999999999999999999")},
		{"letters stay text", "name", TextKey("name")},
		{"mixed stays text", "1a", TextKey("1a")},
		{"space stays text", " 1", TextKey(" 1")},
		{"float form stays text", "1.0", TextKey("1.0")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeKey(tc.input)
			if got != tc.want {
				t.Errorf("NormalizeKey(%q) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizedKeysCollapse(t *testing.T) {
	// Stores through NormalizeKey land on the same entry as the equivalent
	// integer key; non-canonical digit strings stay separate.
	a := New[string]()
	a.Store(IntKey(3), "first")
	a.Store(NormalizeKey("3"), "second")

	if a.Len() != 1 {
		t.Fatalf("expected the canonical form to collapse, got %d entries", a.Len())
	}
	if v, _ := a.Find(IntKey(3)); v != "second" {
		t.Errorf("expected replacement value, got %q", v)
	}

	a.Store(NormalizeKey("03"), "third")
	if a.Len() != 2 {
		t.Errorf("non-canonical %q must stay a text key, got %d entries", "03", a.Len())
	}
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		key  Key
		want string
	}{
		{IntKey(0), "0"},
		{IntKey(42), "42"},
		{IntKey(-1), "-1"},
		{TextKey("name"), `"name"`},
		{TextKey(""), `""`},
		{TextKey("5"), `"5"`},
	}

	for _, tc := range tests {
		if got := tc.key.String(); got != tc.want {
			t.Errorf("%#v.String() = %s, want %s", tc.key, got, tc.want)
		}
	}
}
