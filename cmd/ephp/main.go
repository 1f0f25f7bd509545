package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/danielribes/ephp/pkg/common/log"
	"github.com/danielribes/ephp/pkg/config"
	"github.com/danielribes/ephp/pkg/runtime"
	"github.com/danielribes/ephp/pkg/value"
)

// Command completer for readline
var completer = readline.NewPrefixCompleter(
	readline.PcItem(".help"),
	readline.PcItem(".exit"),
	readline.PcItem(".stats"),
	readline.PcItem(".vars"),
	readline.PcItem(".save"),
	readline.PcItem(".load"),
	readline.PcItem(".destroy"),
	readline.PcItem("SET"),
	readline.PcItem("PUSH"),
	readline.PcItem("GET"),
	readline.PcItem("UNSET"),
	readline.PcItem("ERASE"),
	readline.PcItem("DUMP"),
	readline.PcItem("PRINTR"),
	readline.PcItem("EXPORT"),
	readline.PcItem("KEYS"),
	readline.PcItem("VALUES"),
	readline.PcItem("COUNT"),
	readline.PcItem("SUM"),
	readline.PcItem("RESET"),
	readline.PcItem("NEXT"),
	readline.PcItem("PREV"),
	readline.PcItem("END"),
	readline.PcItem("CURRENT"),
	readline.PcItem("KEY"),
	readline.PcItem("EACH"),
	readline.PcItem("POP"),
	readline.PcItem("SHIFT"),
	readline.PcItem("UNSHIFT"),
	readline.PcItem("MERGE"),
	readline.PcItem("REVERSE",
		readline.PcItem("PRESERVE"),
	),
	readline.PcItem("FLIP"),
	readline.PcItem("SLICE"),
	readline.PcItem("SEARCH",
		readline.PcItem("STRICT"),
	),
	readline.PcItem("SERIALIZE"),
	readline.PcItem("UNSERIALIZE"),
)

const helpText = `
ephp - an interactive workspace over the array runtime.

Usage:
  ephp [options]

Commands:
  .help                   - Show this help message
  .exit                   - Exit the program
  .stats                  - Show runtime statistics
  .vars                   - List the defined variables
  .save ID                - Save all variables as session ID
  .load ID                - Replace all variables with session ID
  .destroy ID             - Remove session ID from disk

  SET name v [v...]       - Assign a variable; several tokens or any
                            key=value token build an array
  PUSH name v [v...]      - Append values to an array
  GET name [key]          - Show a variable or one of its elements
  UNSET name              - Remove a variable
  ERASE name key          - Remove one element from an array

  DUMP name [name...]     - var_dump the variables
  PRINTR name             - print_r the variable
  EXPORT name             - var_export the variable
  KEYS name               - Show the array's keys
  VALUES name             - Show the array's values, renumbered
  COUNT name              - Show the array's element count
  SUM name                - Add up the array's values

  RESET name              - Move the array pointer to the first entry
  END name                - Move the array pointer to the last entry
  NEXT name               - Advance the array pointer
  PREV name               - Retreat the array pointer
  CURRENT name            - Show the entry under the pointer
  KEY name                - Show the key under the pointer
  EACH name               - Show the entry under the pointer and advance

  POP name                - Remove and show the last entry
  SHIFT name              - Remove and show the first entry, renumbering
  UNSHIFT name v [v...]   - Prepend values, renumbering
  MERGE dst src [src...]  - Merge arrays into dst
  REVERSE name [PRESERVE] - Reverse the array in place
  FLIP name               - Exchange keys and values in place
  SLICE name off [len]    - Show a run of entries
  SEARCH name v [STRICT]  - Show the key holding a value, or false
  SERIALIZE name          - Show the variable's encoded form
  UNSERIALIZE name data   - Decode data into the variable

Values are typed automatically: integers, then floats, then the words
true/false/null, then strings. Keys follow the canonical-index rule, so
"5" indexes the integer key space and "05" the text one.
`

// Config holds the application configuration
type Config struct {
	BasePath    string
	SessionDir  string
	LogLevel    string
	HistoryFile string
}

func main() {
	cfg := parseFlags()

	manifest, err := config.LoadManifest(cfg.BasePath)
	if errors.Is(err, config.ErrManifestNotFound) {
		manifest, err = config.NewManifest(cfg.BasePath, config.NewDefaultConfig(cfg.BasePath))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading manifest: %s\n", err)
		os.Exit(1)
	}

	rcfg := manifest.GetConfig()
	rcfg.ApplyEnvOverrides()
	rcfg.Update(func(c *config.Config) {
		if cfg.SessionDir != "" {
			c.SessionDir = cfg.SessionDir
		}
		if cfg.LogLevel != "" {
			c.LogLevel = cfg.LogLevel
		}
	})

	level, err := log.ParseLevel(rcfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	logger := log.NewStandardLogger(
		log.WithLevel(level),
		log.WithOutput(os.Stderr),
	)

	rt, err := runtime.New(manifest, runtime.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening runtime: %s\n", err)
		os.Exit(1)
	}

	setupGracefulShutdown(rt)
	runInteractive(rt, cfg.HistoryFile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing runtime: %s\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags and returns a Config
func parseFlags() Config {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "ephp - an interactive workspace over the array runtime\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: ephp [options]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\nFor the command list, start ephp and type .help\n")
	}

	basePath := flag.String("config", "ephp-data", "Workspace directory holding the MANIFEST and sessions")
	sessionDir := flag.String("sessions", "", "Override the session directory")
	logLevel := flag.String("log-level", "", "Override the log level (debug, info, warn, error)")
	history := flag.String("history", filepath.Join(os.TempDir(), ".ephp_history"), "Readline history file")

	flag.Parse()

	return Config{
		BasePath:    *basePath,
		SessionDir:  *sessionDir,
		LogLevel:    *logLevel,
		HistoryFile: *history,
	}
}

// setupGracefulShutdown configures graceful shutdown on signals
func setupGracefulShutdown(rt *runtime.Runtime) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Printf("\nReceived signal %v, shutting down...\n", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing runtime: %s\n", err)
		}
		os.Exit(0)
	}()
}

// lookupVar returns the named variable's current value. The value is
// borrowed from the cell; callers share it before storing it anywhere.
func lookupVar(rt *runtime.Runtime, name string) (value.Value, bool) {
	c, ok := rt.Globals().Lookup(name)
	if !ok {
		fmt.Printf("Undefined variable: %s\n", name)
		return value.Null, false
	}
	return c.Load(), true
}

// setVar hands a freshly built value to the named variable. The shell
// builds every value it stores, so ownership moves to the cell outright.
func setVar(rt *runtime.Runtime, name string, v value.Value) {
	rt.Globals().Define(name).Replace(v)
}

// withVar runs fn against the named variable's value and writes the
// result back when fn replaced the underlying container. Shift and
// unshift rebuild it; the other mutators work in place on the cell's
// own container, which must not be released out from under it.
func withVar(rt *runtime.Runtime, name string, fn func(v *value.Value)) {
	c, ok := rt.Globals().Lookup(name)
	if !ok {
		fmt.Printf("Undefined variable: %s\n", name)
		return
	}
	v := c.Load()
	fn(&v)
	if c.Load() != v {
		c.Replace(v)
	}
}

// render shows a result the way the interactive user expects: arrays in
// the print_r tree form, scalars with a type tag.
func render(rt *runtime.Runtime, v value.Value) string {
	switch v.Tag {
	case value.TagArray:
		out, _ := rt.PrintR(v, true)
		return strings.TrimRight(out.StrVal(), "\n")
	case value.TagNull:
		return "NULL"
	case value.TagBool:
		if v.BoolVal() {
			return "bool(true)"
		}
		return "bool(false)"
	case value.TagInt:
		return fmt.Sprintf("int(%d)", v.IntVal())
	case value.TagFloat:
		return fmt.Sprintf("float(%s)", value.FormatFloat(v.FloatVal(), rt.Config().Precision))
	default:
		return fmt.Sprintf("string(%d) %q", len(v.StrVal()), v.StrVal())
	}
}

// runInteractive starts the interactive CLI mode
func runInteractive(rt *runtime.Runtime, historyFile string) {
	fmt.Println("ephp version 1.0.0")
	fmt.Println("Enter .help for usage hints.")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ephp> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing readline: %s\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, readErr := rl.Readline()
		if readErr != nil {
			if readErr == readline.ErrInterrupt {
				if len(line) == 0 {
					break
				}
				continue
			} else if readErr == io.EOF {
				fmt.Println("Goodbye!")
				break
			}
			fmt.Fprintf(os.Stderr, "Error reading input: %s\n", readErr)
			continue
		}

		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToUpper(parts[0])

		if strings.HasPrefix(cmd, ".") {
			if !runDotCommand(rt, strings.ToLower(cmd), parts) {
				return
			}
			continue
		}
		runCommand(rt, cmd, parts)
	}
}

// runDotCommand handles the dot commands, returning false on .exit.
func runDotCommand(rt *runtime.Runtime, cmd string, parts []string) bool {
	switch cmd {
	case ".help":
		fmt.Print(helpText)

	case ".exit":
		fmt.Println("Goodbye!")
		return false

	case ".stats":
		printStats(rt.Stats())

	case ".vars":
		names := rt.Globals().Names()
		if len(names) == 0 {
			fmt.Println("No variables defined")
			break
		}
		for _, name := range names {
			v, _ := lookupVar(rt, name)
			fmt.Printf("$%s = %s\n", name, render(rt, v))
		}

	case ".save":
		if len(parts) < 2 {
			fmt.Println("Error: Missing session id")
			break
		}
		if err := rt.SaveSession(context.Background(), parts[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving session: %s\n", err)
		} else {
			fmt.Printf("Session %s saved (%d variables)\n", parts[1], rt.Globals().Len())
		}

	case ".load":
		if len(parts) < 2 {
			fmt.Println("Error: Missing session id")
			break
		}
		if err := rt.LoadSession(context.Background(), parts[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading session: %s\n", err)
		} else {
			fmt.Printf("Session %s loaded (%d variables)\n", parts[1], rt.Globals().Len())
		}

	case ".destroy":
		if len(parts) < 2 {
			fmt.Println("Error: Missing session id")
			break
		}
		if err := rt.DestroySession(context.Background(), parts[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error destroying session: %s\n", err)
		} else {
			fmt.Printf("Session %s destroyed\n", parts[1])
		}

	default:
		fmt.Printf("Unknown command: %s\n", cmd)
	}
	return true
}

// runCommand handles the uppercase verbs.
func runCommand(rt *runtime.Runtime, cmd string, parts []string) {
	switch cmd {
	case "SET":
		if len(parts) < 3 {
			fmt.Println("Error: SET requires a name and at least one value")
			return
		}
		setVar(rt, parts[1], buildValue(parts[2:]))
		fmt.Println("OK")

	case "PUSH":
		if len(parts) < 3 {
			fmt.Println("Error: PUSH requires a name and at least one value")
			return
		}
		withVar(rt, parts[1], func(v *value.Value) {
			n, err := rt.ArrayPush(v, literals(parts[2:])...)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				return
			}
			fmt.Printf("int(%d)\n", n)
		})

	case "GET":
		if len(parts) < 2 {
			fmt.Println("Error: GET requires a name")
			return
		}
		v, ok := lookupVar(rt, parts[1])
		if !ok {
			return
		}
		if len(parts) >= 3 {
			a := v.ArrayForRead()
			if a == nil {
				fmt.Printf("Error: $%s is not an array\n", parts[1])
				return
			}
			elem, found := a.Find(parseKey(parts[2]))
			if !found {
				fmt.Println("Key not found")
				return
			}
			fmt.Println(render(rt, elem))
			return
		}
		fmt.Println(render(rt, v))

	case "UNSET":
		if len(parts) < 2 {
			fmt.Println("Error: UNSET requires a name")
			return
		}
		rt.Unset(parts[1])
		fmt.Println("OK")

	case "ERASE":
		if len(parts) < 3 {
			fmt.Println("Error: ERASE requires a name and a key")
			return
		}
		withVar(rt, parts[1], func(v *value.Value) {
			w := v.ArrayForWrite()
			if w == nil {
				fmt.Printf("Error: $%s is not an array\n", parts[1])
				return
			}
			if prev, ok := w.Find(parseKey(parts[2])); ok {
				prev.Release()
			}
			w.Erase(parseKey(parts[2]))
			fmt.Println("OK")
		})

	case "DUMP":
		if len(parts) < 2 {
			fmt.Println("Error: DUMP requires at least one name")
			return
		}
		vals := make([]value.Value, 0, len(parts)-1)
		for _, name := range parts[1:] {
			v, ok := lookupVar(rt, name)
			if !ok {
				return
			}
			vals = append(vals, v)
		}
		if err := rt.VarDump(vals...); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}

	case "PRINTR":
		if v, ok := argVar(rt, cmd, parts); ok {
			if _, err := rt.PrintR(v, false); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			}
		}

	case "EXPORT":
		if v, ok := argVar(rt, cmd, parts); ok {
			if _, err := rt.VarExport(v, false); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			}
			fmt.Println()
		}

	case "KEYS":
		if v, ok := argVar(rt, cmd, parts); ok {
			showResult(rt)(rt.ArrayKeys(v))
		}

	case "VALUES":
		if v, ok := argVar(rt, cmd, parts); ok {
			showResult(rt)(rt.ArrayValues(v))
		}

	case "COUNT":
		if v, ok := argVar(rt, cmd, parts); ok {
			n, err := rt.Count(v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				return
			}
			fmt.Printf("int(%d)\n", n)
		}

	case "SUM":
		if v, ok := argVar(rt, cmd, parts); ok {
			showResult(rt)(rt.ArraySum(v))
		}

	case "RESET", "END", "NEXT", "PREV", "EACH":
		if len(parts) < 2 {
			fmt.Printf("Error: %s requires a name\n", cmd)
			return
		}
		withVar(rt, parts[1], func(v *value.Value) {
			var res value.Value
			switch cmd {
			case "RESET":
				res = rt.Reset(v)
			case "END":
				res = rt.End(v)
			case "NEXT":
				res = rt.Next(v)
			case "PREV":
				res = rt.Prev(v)
			case "EACH":
				res = rt.Each(v)
			}
			fmt.Println(render(rt, res))
		})

	case "CURRENT":
		if v, ok := argVar(rt, cmd, parts); ok {
			fmt.Println(render(rt, rt.Current(v)))
		}

	case "KEY":
		if v, ok := argVar(rt, cmd, parts); ok {
			fmt.Println(render(rt, rt.Key(v)))
		}

	case "POP":
		if len(parts) < 2 {
			fmt.Println("Error: POP requires a name")
			return
		}
		withVar(rt, parts[1], func(v *value.Value) {
			showResult(rt)(rt.ArrayPop(v))
		})

	case "SHIFT":
		if len(parts) < 2 {
			fmt.Println("Error: SHIFT requires a name")
			return
		}
		withVar(rt, parts[1], func(v *value.Value) {
			showResult(rt)(rt.ArrayShift(v))
		})

	case "UNSHIFT":
		if len(parts) < 3 {
			fmt.Println("Error: UNSHIFT requires a name and at least one value")
			return
		}
		withVar(rt, parts[1], func(v *value.Value) {
			n, err := rt.ArrayUnshift(v, literals(parts[2:])...)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				return
			}
			fmt.Printf("int(%d)\n", n)
		})

	case "MERGE":
		if len(parts) < 3 {
			fmt.Println("Error: MERGE requires a destination and at least one source")
			return
		}
		srcs := make([]value.Value, 0, len(parts)-2)
		for _, name := range parts[2:] {
			v, ok := lookupVar(rt, name)
			if !ok {
				return
			}
			srcs = append(srcs, v)
		}
		merged, err := rt.ArrayMerge(srcs...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return
		}
		setVar(rt, parts[1], merged)
		fmt.Println(render(rt, merged))

	case "REVERSE":
		if len(parts) < 2 {
			fmt.Println("Error: REVERSE requires a name")
			return
		}
		v, ok := lookupVar(rt, parts[1])
		if !ok {
			return
		}
		preserve := len(parts) >= 3 && strings.ToUpper(parts[2]) == "PRESERVE"
		reversed, err := rt.ArrayReverse(v, preserve)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return
		}
		setVar(rt, parts[1], reversed)
		fmt.Println(render(rt, reversed))

	case "FLIP":
		if len(parts) < 2 {
			fmt.Println("Error: FLIP requires a name")
			return
		}
		v, ok := lookupVar(rt, parts[1])
		if !ok {
			return
		}
		flipped, err := rt.ArrayFlip(v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return
		}
		setVar(rt, parts[1], flipped)
		fmt.Println(render(rt, flipped))

	case "SLICE":
		if len(parts) < 3 {
			fmt.Println("Error: SLICE requires a name and an offset")
			return
		}
		v, ok := lookupVar(rt, parts[1])
		if !ok {
			return
		}
		offset, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			fmt.Printf("Error: bad offset %q\n", parts[2])
			return
		}
		length := runtime.SliceAll
		preserve := false
		rest := parts[3:]
		if len(rest) > 0 && strings.ToUpper(rest[len(rest)-1]) == "PRESERVE" {
			preserve = true
			rest = rest[:len(rest)-1]
		}
		if len(rest) > 0 {
			length, err = strconv.ParseInt(rest[0], 10, 64)
			if err != nil {
				fmt.Printf("Error: bad length %q\n", rest[0])
				return
			}
		}
		showResult(rt)(rt.ArraySlice(v, offset, length, preserve))

	case "SEARCH":
		if len(parts) < 3 {
			fmt.Println("Error: SEARCH requires a name and a value")
			return
		}
		v, ok := lookupVar(rt, parts[1])
		if !ok {
			return
		}
		strict := len(parts) >= 4 && strings.ToUpper(parts[3]) == "STRICT"
		showResult(rt)(rt.ArraySearch(parseLiteral(parts[2]), v, strict))

	case "SERIALIZE":
		if v, ok := argVar(rt, cmd, parts); ok {
			enc, err := rt.Serialize(v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				return
			}
			fmt.Println(enc.StrVal())
		}

	case "UNSERIALIZE":
		if len(parts) < 3 {
			fmt.Println("Error: UNSERIALIZE requires a name and a payload")
			return
		}
		decoded := rt.Unserialize(strings.Join(parts[2:], " "))
		setVar(rt, parts[1], decoded)
		fmt.Println(render(rt, decoded))

	default:
		fmt.Printf("Unknown command: %s\n", cmd)
	}
}

// argVar fetches the single variable argument of a command.
func argVar(rt *runtime.Runtime, cmd string, parts []string) (value.Value, bool) {
	if len(parts) < 2 {
		fmt.Printf("Error: %s requires a name\n", cmd)
		return value.Null, false
	}
	return lookupVar(rt, parts[1])
}

// literals types each argument token.
func literals(args []string) []value.Value {
	vals := make([]value.Value, len(args))
	for i, a := range args {
		vals[i] = parseLiteral(a)
	}
	return vals
}

// showResult prints a built-in's (value, error) outcome.
func showResult(rt *runtime.Runtime) func(value.Value, error) {
	return func(v value.Value, err error) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return
		}
		fmt.Println(render(rt, v))
	}
}

// printStats renders the collector snapshot in sections.
func printStats(stats map[string]interface{}) {
	getUint64 := func(m map[string]interface{}, key string) uint64 {
		if val, ok := m[key]; ok {
			switch v := val.(type) {
			case uint64:
				return v
			case int64:
				return uint64(v)
			case int:
				return uint64(v)
			case float64:
				return uint64(v)
			}
		}
		return 0
	}

	fmt.Println("📊 Operations:")
	for _, op := range []string{
		"store", "fetch", "erase", "append",
		"cursor_move", "cursor_read",
		"serialize", "unserialize", "dump", "capture",
	} {
		if n := getUint64(stats, op+"_ops"); n > 0 {
			fmt.Printf("  • %s: %d\n", op, n)
		}
	}

	fmt.Println("\n💾 Sessions:")
	fmt.Printf("  • Writes: %d\n", getUint64(stats, "session_write_count"))
	fmt.Printf("  • Purges: %d\n", getUint64(stats, "session_purge_count"))
	fmt.Printf("  • Bytes Read: %d\n", getUint64(stats, "total_bytes_read"))
	fmt.Printf("  • Bytes Written: %d\n", getUint64(stats, "total_bytes_written"))

	if restoreMap, ok := stats["restore"].(map[string]interface{}); ok {
		fmt.Println("\n🔄 Session Restore:")
		fmt.Printf("  • Files Scanned: %d\n", getUint64(restoreMap, "session_files_scanned"))
		fmt.Printf("  • Sessions Restored: %d\n", getUint64(restoreMap, "sessions_restored"))
		fmt.Printf("  • Corrupted Sessions: %d\n", getUint64(restoreMap, "corrupted_sessions"))
		if ms, ok := restoreMap["restore_duration_ms"].(int64); ok {
			fmt.Printf("  • Restore Duration: %d ms\n", ms)
		}
	}

	if errorsMap, ok := stats["errors"].(map[string]interface{}); ok && len(errorsMap) > 0 {
		fmt.Println("\n⚠️ Errors:")
		keys := make([]string, 0, len(errorsMap))
		for k := range errorsMap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  • %s: %v\n", k, errorsMap[k])
		}
	}
}
