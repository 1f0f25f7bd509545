// Package runtime ties the container, value, dump, serialize, session and
// output packages together behind one facade and hosts the array built-in
// library on top of them. The built-ins keep the classic calling
// conventions: pointer-family calls report false instead of failing,
// mutators take a pointer to the caller's value so copy-on-write separation
// happens exactly once, and constructors hand back a fresh value the caller
// owns.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/danielribes/ephp/pkg/common/log"
	"github.com/danielribes/ephp/pkg/config"
	"github.com/danielribes/ephp/pkg/dump"
	"github.com/danielribes/ephp/pkg/output"
	"github.com/danielribes/ephp/pkg/phparray"
	"github.com/danielribes/ephp/pkg/serialize"
	"github.com/danielribes/ephp/pkg/session"
	"github.com/danielribes/ephp/pkg/stats"
	"github.com/danielribes/ephp/pkg/telemetry"
	"github.com/danielribes/ephp/pkg/value"
)

var (
	// ErrNotArray indicates a built-in that needs an array received
	// something else.
	ErrNotArray = errors.New("value is not an array")

	// ErrIllegalOffset indicates a key of a type the container cannot
	// index by, such as an array used as a key.
	ErrIllegalOffset = errors.New("illegal offset type")

	// ErrCountMismatch indicates two arrays that must pair up entry for
	// entry but have different sizes.
	ErrCountMismatch = errors.New("arrays have different sizes")

	// ErrBadCount indicates a negative element count.
	ErrBadCount = errors.New("count must not be negative")
)

// Runtime is the facade embedders and the shell talk to. It owns the
// global variable scope, the output buffer stack and the session store,
// and routes every built-in through the stats collector and telemetry.
type Runtime struct {
	cfg      *config.Config
	manifest *config.Manifest

	globals    *value.Scope
	out        *output.Stack
	sessions   *session.Store
	dumper     *dump.Dumper
	serializer *serialize.Codec

	logger    log.Logger
	collector stats.Collector
	tel       telemetry.Telemetry

	sink io.Writer
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used by the runtime and its session store.
func WithLogger(logger log.Logger) Option {
	return func(r *Runtime) {
		r.logger = logger
	}
}

// WithCollector sets the statistics collector shared by all components.
func WithCollector(collector stats.Collector) Option {
	return func(r *Runtime) {
		r.collector = collector
	}
}

// WithTelemetry sets the telemetry sink. Without it the runtime builds a
// provider from the environment when the manifest enables telemetry, and
// a no-op otherwise.
func WithTelemetry(tel telemetry.Telemetry) Option {
	return func(r *Runtime) {
		r.tel = tel
	}
}

// WithOutput sets the writer under the output buffer stack. Defaults to
// standard output.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) {
		r.sink = w
	}
}

// New opens a runtime over the manifest's configuration. The session
// directory is scanned so sessions written by an earlier process are
// listable again.
func New(manifest *config.Manifest, opts ...Option) (*Runtime, error) {
	cfg := manifest.GetConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runtime{
		cfg:      cfg,
		manifest: manifest,
		globals:  value.NewScope(),
		dumper:   dump.NewDumper(),
		serializer: &serialize.Codec{
			MaxDepth:  cfg.SerializeMaxDepth,
			Precision: cfg.SerializePrecision,
		},
		logger:    log.GetDefaultLogger(),
		collector: stats.NewCollector(),
		sink:      os.Stdout,
	}
	r.dumper.Precision = cfg.Precision
	r.dumper.SerializePrecision = cfg.SerializePrecision
	for _, opt := range opts {
		opt(r)
	}

	if r.tel == nil {
		tel, err := buildTelemetry(cfg)
		if err != nil {
			return nil, err
		}
		r.tel = tel
	}

	sessions, err := session.NewStore(manifest,
		session.WithLogger(r.logger),
		session.WithCollector(r.collector),
		session.WithTelemetry(r.tel),
	)
	if err != nil {
		return nil, err
	}
	r.sessions = sessions
	r.out = output.NewStack(r.sink)

	summary, err := r.sessions.Restore(context.Background())
	if err != nil {
		r.logger.Warn("session restore failed: %v", err)
	} else if summary.FilesScanned > 0 {
		r.logger.Info("restored %d of %d session files (%d corrupted)",
			summary.Restored, summary.FilesScanned, summary.Corrupted)
	}
	return r, nil
}

func buildTelemetry(cfg *config.Config) (telemetry.Telemetry, error) {
	if !cfg.TelemetryEnabled {
		return telemetry.NewNoop(), nil
	}
	tcfg := telemetry.DefaultConfig()
	tcfg.LoadFromEnv()
	return telemetry.New(tcfg)
}

// Close flushes buffered output, closes the session store and shuts down
// the telemetry pipeline.
func (r *Runtime) Close(ctx context.Context) error {
	var firstErr error
	if err := r.out.FlushAll(); err != nil {
		firstErr = err
	}
	if err := r.sessions.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.tel.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Globals returns the global variable scope.
func (r *Runtime) Globals() *value.Scope { return r.globals }

// Output returns the output buffer stack.
func (r *Runtime) Output() *output.Stack { return r.out }

// Sessions returns the session store.
func (r *Runtime) Sessions() *session.Store { return r.sessions }

// Config returns the active configuration.
func (r *Runtime) Config() *config.Config { return r.cfg }

// Stats returns a point-in-time snapshot of all collected counters.
func (r *Runtime) Stats() map[string]interface{} {
	return r.collector.GetStats()
}

// track counts a built-in call on both the collector and the telemetry
// sink. The counter carries the built-in's name as an attribute so call
// mixes are visible per builtin, not just per operation class.
func (r *Runtime) track(op stats.OperationType, name string) {
	r.collector.TrackOperation(op)
	r.tel.RecordCounter(context.Background(), "runtime.builtin.calls", 1,
		attribute.String(telemetry.AttrBuiltin, name),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentRuntime),
	)
}

// Assign stores v into the named global, defining it on first use. The
// cell takes its own reference, so the caller's value stays usable.
func (r *Runtime) Assign(name string, v value.Value) {
	r.track(stats.OpStore, "assign")
	r.globals.Define(name).Assign(v)
}

// AssignRef makes dst an alias of src: both names share one cell, so an
// assignment through either is visible through the other. A missing src
// is defined as null first, matching reference-assignment vivification.
func (r *Runtime) AssignRef(dst, src string) {
	r.track(stats.OpStore, "assign_ref")
	r.globals.Bind(dst, r.globals.Define(src))
}

// Lookup returns the named global, or null when it was never assigned.
// The returned value is borrowed: store it through Assign or Share it.
func (r *Runtime) Lookup(name string) value.Value {
	r.track(stats.OpFetch, "lookup")
	c, ok := r.globals.Lookup(name)
	if !ok {
		r.logger.Debug("undefined variable %q", name)
		return value.Null
	}
	return c.Load()
}

// IsSet reports whether the named global is defined and non-null.
func (r *Runtime) IsSet(name string) bool {
	r.track(stats.OpFetch, "isset")
	return r.globals.Has(name)
}

// Unset removes the named global, releasing its payload.
func (r *Runtime) Unset(name string) {
	r.track(stats.OpErase, "unset")
	r.globals.Unset(name)
}

// Echo renders each value with loose string coercion and writes the
// result to the output stack.
func (r *Runtime) Echo(vals ...value.Value) error {
	r.track(stats.OpDump, "echo")
	for _, v := range vals {
		if _, err := r.out.WriteString(value.AsString(v, r.cfg.Precision)); err != nil {
			return err
		}
	}
	return nil
}

// PrintR renders v in the tree format. With ret the rendition is returned
// as a string value; otherwise it is written to the output stack and true
// comes back.
func (r *Runtime) PrintR(v value.Value, ret bool) (value.Value, error) {
	if ret {
		r.track(stats.OpCapture, "print_r")
		return value.Str(r.dumper.SPrintR(v)), nil
	}
	r.track(stats.OpDump, "print_r")
	if err := r.dumper.PrintR(r.out, v); err != nil {
		return value.Null, err
	}
	return value.Bool(true), nil
}

// VarDump writes the typed dump of each value to the output stack.
func (r *Runtime) VarDump(vals ...value.Value) error {
	r.track(stats.OpDump, "var_dump")
	return r.dumper.VarDump(r.out, vals...)
}

// VarExport renders v as re-parsable source. With ret the rendition is
// returned as a string value; otherwise it is written to the output stack
// and null comes back.
func (r *Runtime) VarExport(v value.Value, ret bool) (value.Value, error) {
	if ret {
		r.track(stats.OpCapture, "var_export")
		return value.Str(r.dumper.SVarExport(v)), nil
	}
	r.track(stats.OpDump, "var_export")
	if err := r.dumper.VarExport(r.out, v); err != nil {
		return value.Null, err
	}
	return value.Null, nil
}

// Serialize encodes v into the textual wire form.
func (r *Runtime) Serialize(v value.Value) (value.Value, error) {
	r.track(stats.OpSerialize, "serialize")
	s, err := r.serializer.Encode(v)
	if err != nil {
		r.collector.TrackError("serialize_failed")
		return value.Null, err
	}
	return value.Str(s), nil
}

// Unserialize decodes the textual wire form. Malformed input yields false
// with a logged warning, never an error: callers probe payloads of
// unknown provenance with it.
func (r *Runtime) Unserialize(s string) value.Value {
	r.track(stats.OpUnserialize, "unserialize")
	v, err := r.serializer.Decode(s)
	if err != nil {
		r.collector.TrackError("unserialize_failed")
		r.logger.Warn("unserialize: %v", err)
		return value.Bool(false)
	}
	return v
}

// SaveSession snapshots the global scope into a single array value and
// writes it to the session store under id. Variable names go through
// canonical key normalization, so a global named "5" is stored under the
// integer key 5 and comes back under that name.
func (r *Runtime) SaveSession(ctx context.Context, id string) error {
	r.track(stats.OpStore, "session_save")

	// The snapshot borrows the cell payloads for the duration of the
	// write; it is dropped without releasing, so no reference counts move.
	arr := phparray.New[value.Value]()
	for _, name := range r.globals.Names() {
		c, ok := r.globals.Lookup(name)
		if !ok {
			continue
		}
		arr.Store(phparray.NormalizeKey(name), c.Load())
	}
	return r.sessions.Write(ctx, id, value.Arr(arr))
}

// LoadSession replaces the global scope with the state stored under id.
// The decoded entries are handed to the cells one by one; aliases bound
// before the load are dropped with everything else.
func (r *Runtime) LoadSession(ctx context.Context, id string) error {
	r.track(stats.OpFetch, "session_load")

	root, err := r.sessions.Read(ctx, id)
	if err != nil {
		return err
	}
	if !root.IsArray() {
		return fmt.Errorf("%w: session root is %s", session.ErrCorruptSession, root.TypeName())
	}

	r.globals.Clear()
	for _, e := range root.ArrayForRead().ToList() {
		// Ownership of each entry value moves from the decoded container
		// to the cell; the container itself is discarded. Key.String is a
		// debug render that quotes text keys, so the name is rebuilt from
		// the key's payload instead.
		name := e.Key.Text()
		if e.Key.Kind() == phparray.KindInt {
			name = strconv.FormatInt(e.Key.Int(), 10)
		}
		r.globals.Define(name).Replace(e.Value)
	}
	return nil
}

// DestroySession removes the session stored under id. Destroying an
// unknown id is not an error.
func (r *Runtime) DestroySession(ctx context.Context, id string) error {
	r.track(stats.OpErase, "session_destroy")
	return r.sessions.Destroy(ctx, id)
}
