// Package serialize implements the textual value encoding used for session
// payloads: N; b:1; i:5; d:0.5; s:3:"abc"; and a:n:{...} forms.
package serialize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/danielribes/ephp/pkg/phparray"
	"github.com/danielribes/ephp/pkg/value"
)

// Common errors returned by the codec.
var (
	// ErrSyntax indicates a payload that does not follow the encoding.
	ErrSyntax = errors.New("serialize: malformed payload")

	// ErrDepthExceeded indicates nesting beyond the configured maximum,
	// on either side. Encoding hits it when fed a self-referencing array.
	ErrDepthExceeded = errors.New("serialize: maximum depth exceeded")

	// ErrTrailingData indicates extra bytes after a complete value.
	ErrTrailingData = errors.New("serialize: trailing data after value")
)

// DefaultMaxDepth bounds nesting when no configuration is supplied.
const DefaultMaxDepth = 4096

// Codec encodes and decodes values. MaxDepth bounds nesting in both
// directions; Precision drives float rendering, with -1 selecting the
// shortest round-trip form.
type Codec struct {
	MaxDepth  int
	Precision int
}

// NewCodec returns a codec with the default depth bound and round-trip
// float rendering.
func NewCodec() *Codec {
	return &Codec{MaxDepth: DefaultMaxDepth, Precision: -1}
}

// Encode renders v in the textual encoding.
func (c *Codec) Encode(v value.Value) (string, error) {
	var b strings.Builder
	if err := c.encode(&b, v, 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (c *Codec) encode(b *strings.Builder, v value.Value, depth int) error {
	if depth > c.MaxDepth {
		return ErrDepthExceeded
	}

	switch v.Tag {
	case value.TagNull:
		b.WriteString("N;")
	case value.TagBool:
		if v.BoolVal() {
			b.WriteString("b:1;")
		} else {
			b.WriteString("b:0;")
		}
	case value.TagInt:
		b.WriteString("i:")
		b.WriteString(strconv.FormatInt(v.IntVal(), 10))
		b.WriteByte(';')
	case value.TagFloat:
		b.WriteString("d:")
		b.WriteString(value.FormatFloat(v.FloatVal(), c.Precision))
		b.WriteByte(';')
	case value.TagString:
		encodeString(b, v.StrVal())
	case value.TagArray:
		arr := v.ArrayForRead()
		fmt.Fprintf(b, "a:%d:{", arr.Len())
		for k, el := range arr.All() {
			if k.Kind() == phparray.KindInt {
				b.WriteString("i:")
				b.WriteString(strconv.FormatInt(k.Int(), 10))
				b.WriteByte(';')
			} else {
				encodeString(b, k.Text())
			}
			if err := c.encode(b, el, depth+1); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return fmt.Errorf("%w: unknown tag %d", ErrSyntax, v.Tag)
	}
	return nil
}

func encodeString(b *strings.Builder, s string) {
	fmt.Fprintf(b, "s:%d:\"", len(s))
	b.WriteString(s)
	b.WriteString("\";")
}

// Decode parses a complete value and requires the whole input to be
// consumed.
func (c *Codec) Decode(s string) (value.Value, error) {
	d := &decoder{s: s, maxDepth: c.MaxDepth}
	v, err := d.value(0)
	if err != nil {
		return value.Null, err
	}
	if d.pos != len(s) {
		return value.Null, fmt.Errorf("%w at offset %d", ErrTrailingData, d.pos)
	}
	return v, nil
}

type decoder struct {
	s        string
	pos      int
	maxDepth int
}

func (d *decoder) fail() error {
	return fmt.Errorf("%w at offset %d", ErrSyntax, d.pos)
}

func (d *decoder) expect(b byte) error {
	if d.pos >= len(d.s) || d.s[d.pos] != b {
		return d.fail()
	}
	d.pos++
	return nil
}

// uint reads an unsigned decimal used for lengths and counts.
func (d *decoder) uint() (int, error) {
	start := d.pos
	for d.pos < len(d.s) && d.s[d.pos] >= '0' && d.s[d.pos] <= '9' {
		d.pos++
	}
	if d.pos == start {
		return 0, d.fail()
	}
	n, err := strconv.Atoi(d.s[start:d.pos])
	if err != nil {
		return 0, d.fail()
	}
	return n, nil
}

func (d *decoder) value(depth int) (value.Value, error) {
	if depth > d.maxDepth {
		return value.Null, fmt.Errorf("%w at offset %d", ErrDepthExceeded, d.pos)
	}
	if d.pos >= len(d.s) {
		return value.Null, d.fail()
	}

	switch d.s[d.pos] {
	case 'N':
		d.pos++
		if err := d.expect(';'); err != nil {
			return value.Null, err
		}
		return value.Null, nil

	case 'b':
		d.pos++
		if err := d.expect(':'); err != nil {
			return value.Null, err
		}
		if d.pos >= len(d.s) || (d.s[d.pos] != '0' && d.s[d.pos] != '1') {
			return value.Null, d.fail()
		}
		v := value.Bool(d.s[d.pos] == '1')
		d.pos++
		if err := d.expect(';'); err != nil {
			return value.Null, err
		}
		return v, nil

	case 'i':
		d.pos++
		if err := d.expect(':'); err != nil {
			return value.Null, err
		}
		n, err := d.int64()
		if err != nil {
			return value.Null, err
		}
		if err := d.expect(';'); err != nil {
			return value.Null, err
		}
		return value.Int(n), nil

	case 'd':
		d.pos++
		if err := d.expect(':'); err != nil {
			return value.Null, err
		}
		f, err := d.float()
		if err != nil {
			return value.Null, err
		}
		if err := d.expect(';'); err != nil {
			return value.Null, err
		}
		return value.Float(f), nil

	case 's':
		s, err := d.str()
		if err != nil {
			return value.Null, err
		}
		return value.Str(s), nil

	case 'a':
		return d.array(depth)
	}
	return value.Null, d.fail()
}

func (d *decoder) int64() (int64, error) {
	start := d.pos
	if d.pos < len(d.s) && (d.s[d.pos] == '-' || d.s[d.pos] == '+') {
		d.pos++
	}
	for d.pos < len(d.s) && d.s[d.pos] >= '0' && d.s[d.pos] <= '9' {
		d.pos++
	}
	n, err := strconv.ParseInt(d.s[start:d.pos], 10, 64)
	if err != nil {
		d.pos = start
		return 0, d.fail()
	}
	return n, nil
}

// float reads up to the delimiting semicolon. NAN and the two INF
// spellings are accepted alongside decimal and exponent forms.
func (d *decoder) float() (float64, error) {
	end := strings.IndexByte(d.s[d.pos:], ';')
	if end < 0 {
		return 0, d.fail()
	}
	body := d.s[d.pos : d.pos+end]

	var f float64
	switch body {
	case "NAN":
		f = math.NaN()
	case "INF":
		f = math.Inf(1)
	case "-INF":
		f = math.Inf(-1)
	default:
		var err error
		f, err = strconv.ParseFloat(body, 64)
		if err != nil {
			return 0, d.fail()
		}
	}
	d.pos += end
	return f, nil
}

func (d *decoder) str() (string, error) {
	// s:<len>:"<bytes>";
	d.pos++
	if err := d.expect(':'); err != nil {
		return "", err
	}
	n, err := d.uint()
	if err != nil {
		return "", err
	}
	if err := d.expect(':'); err != nil {
		return "", err
	}
	if err := d.expect('"'); err != nil {
		return "", err
	}
	if d.pos+n > len(d.s) {
		return "", d.fail()
	}
	s := d.s[d.pos : d.pos+n]
	d.pos += n
	if err := d.expect('"'); err != nil {
		return "", err
	}
	if err := d.expect(';'); err != nil {
		return "", err
	}
	return s, nil
}

func (d *decoder) array(depth int) (value.Value, error) {
	// a:<count>:{<key><value>...}
	d.pos++
	if err := d.expect(':'); err != nil {
		return value.Null, err
	}
	count, err := d.uint()
	if err != nil {
		return value.Null, err
	}
	if err := d.expect(':'); err != nil {
		return value.Null, err
	}
	if err := d.expect('{'); err != nil {
		return value.Null, err
	}

	arr := phparray.New[value.Value]()
	for i := 0; i < count; i++ {
		kv, err := d.value(depth + 1)
		if err != nil {
			return value.Null, err
		}
		if kv.Tag != value.TagInt && kv.Tag != value.TagString {
			return value.Null, d.fail()
		}
		el, err := d.value(depth + 1)
		if err != nil {
			return value.Null, err
		}
		// Store applies the usual key normalization, so a payload key
		// like s:1:"5" lands on the integer key, later pairs win on
		// duplicates, and the auto-key watermark is rebuilt as the
		// entries arrive.
		arr.Store(kv.Key(), el)
	}
	if err := d.expect('}'); err != nil {
		return value.Null, err
	}
	return value.Arr(arr), nil
}

// Encode renders v with the default codec settings.
func Encode(v value.Value) (string, error) {
	return NewCodec().Encode(v)
}

// Decode parses s with the default codec settings.
func Decode(s string) (value.Value, error) {
	return NewCodec().Decode(s)
}
