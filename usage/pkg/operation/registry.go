package operation

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/thinkparq/fsstrata/common/units"
	"github.com/thinkparq/fsstrata/usage/pkg/datagen"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
)

// args are the tokens of one operation, either split from a playbook line or taken from a
// field map.
type args struct {
	positional []string
	keys       map[string]string
}

// kind is one row of the registry.
type kind struct {
	// positional names the positional arguments in order.
	positional []string
	// variadic joins all positional tokens into the single positional argument.
	variadic bool
	// keys lists the accepted key=value arguments and whether each is required.
	keys  map[string]bool
	build func(a args) (Operation, error)
	usage string
}

var contentKeys = map[string]bool{"chunked": false, "chunk_size": false, "data_generator": false}

// registry is the single source of truth mapping command tokens to their grammar and builder.
var registry = map[Command]kind{
	CopyCommand: {
		positional: []string{"src", "dst"},
		build: func(a args) (Operation, error) {
			return NewCopy(a.positional[0], a.positional[1])
		},
		usage: "cp <src> <dst>",
	},
	MoveCommand: {
		positional: []string{"src", "dst"},
		build: func(a args) (Operation, error) {
			return NewMove(a.positional[0], a.positional[1])
		},
		usage: "mv <src> <dst>",
	},
	RemoveCommand: {
		positional: []string{"path"},
		build: func(a args) (Operation, error) {
			return NewRemove(a.positional[0])
		},
		usage: "rm <path>",
	},
	MkdirCommand: {
		positional: []string{"path"},
		build: func(a args) (Operation, error) {
			return NewMkdir(a.positional[0])
		},
		usage: "mkdir <path>",
	},
	WriteCommand: {
		positional: []string{"path"},
		keys:       withKeys(contentKeys, map[string]bool{"size": true}),
		build:      buildContent(WriteCommand, "size"),
		usage:      "write <path> size=<size> [chunked=<bool>] [chunk_size=<size>] [data_generator=<generator>]",
	},
	ExtendCommand: {
		positional: []string{"path"},
		keys:       withKeys(contentKeys, map[string]bool{"extend_size": true, "pattern": false}),
		build:      buildContent(ExtendCommand, "extend_size"),
		usage:      "extend <path> extend_size=<size> [chunked=<bool>] [chunk_size=<size>] [data_generator=<generator>]",
	},
	ShrinkCommand: {
		positional: []string{"path"},
		keys:       map[string]bool{"shrink_size": true},
		build: func(a args) (Operation, error) {
			size, err := units.ParseSize(a.keys["shrink_size"])
			if err != nil {
				return nil, keyError("shrink_size", a.keys["shrink_size"], err)
			}
			op, err := NewShrink(a.positional[0], size)
			if errors.Is(err, errSize) {
				return nil, keyError("shrink_size", a.keys["shrink_size"], err)
			} else if err != nil {
				return nil, err
			}
			return op, nil
		},
		usage: "shrink <path> shrink_size=<size>",
	},
	SleepCommand: {
		positional: []string{"duration"},
		variadic:   true,
		build: func(a args) (Operation, error) {
			d, err := units.ParseDuration(a.positional[0])
			if err != nil {
				return nil, &tokenError{token: a.positional[0], err: err}
			}
			op, err := NewSleep(d)
			if err != nil {
				return nil, &tokenError{token: a.positional[0], err: err}
			}
			return op, nil
		},
		usage: "sleep <duration>",
	},
	SetClockCommand: {
		positional: []string{"time"},
		variadic:   true,
		build: func(a args) (Operation, error) {
			t, err := parseTime(a.positional[0])
			if err != nil {
				return nil, &tokenError{token: a.positional[0], err: err}
			}
			return NewSetClock(t), nil
		},
		usage: "time <timestamp>",
	},
}

func withKeys(base map[string]bool, extra map[string]bool) map[string]bool {
	merged := maps.Clone(base)
	maps.Copy(merged, extra)
	return merged
}

// tokenError remembers which token of the line was at fault.
type tokenError struct {
	token string
	err   error
}

func (e *tokenError) Error() string { return e.err.Error() }
func (e *tokenError) Unwrap() error { return e.err }

func keyError(key, value string, err error) error {
	return &tokenError{token: key + "=" + value, err: err}
}

func buildContent(cmd Command, sizeKey string) func(a args) (Operation, error) {
	return func(a args) (Operation, error) {
		size, err := units.ParseSize(a.keys[sizeKey])
		if err != nil {
			return nil, keyError(sizeKey, a.keys[sizeKey], err)
		}
		var opts []ContentOption
		if v, ok := a.keys["chunk_size"]; ok {
			chunkSize, err := units.ParseSize(v)
			if err != nil {
				return nil, keyError("chunk_size", v, err)
			}
			opts = append(opts, WithChunkSize(chunkSize))
		}
		if v, ok := a.keys["chunked"]; ok {
			chunked, err := units.ParseBool(v)
			if err != nil {
				return nil, keyError("chunked", v, err)
			}
			if chunked {
				// Keeps a chunk_size parsed above.
				opts = append(opts, func(c *content) { c.chunked = true })
			}
		}
		_, hasGen := a.keys["data_generator"]
		_, hasPattern := a.keys["pattern"]
		switch {
		case hasGen && hasPattern:
			return nil, keyError("pattern", a.keys["pattern"], fmt.Errorf("pattern and data_generator are mutually exclusive"))
		case hasGen:
			spec, err := datagen.Parse(a.keys["data_generator"])
			if err != nil {
				return nil, keyError("data_generator", a.keys["data_generator"], err)
			}
			opts = append(opts, WithGenerator(spec))
		case hasPattern:
			opts = append(opts, WithGenerator(datagen.StaticSpec(a.keys["pattern"])))
		}
		var op Operation
		if cmd == WriteCommand {
			op, err = NewWrite(a.positional[0], size, opts...)
		} else {
			op, err = NewExtend(a.positional[0], size, opts...)
		}
		switch {
		case errors.Is(err, errSize):
			return nil, keyError(sizeKey, a.keys[sizeKey], err)
		case errors.Is(err, errChunkSize):
			return nil, keyError("chunk_size", a.keys["chunk_size"], err)
		case err != nil:
			return nil, err
		}
		return op, nil
	}
}

// Commands returns the registered command tokens in sorted order.
func Commands() []Command {
	return slices.Sorted(maps.Keys(registry))
}

// Usage returns the playbook grammar of cmd.
func Usage(cmd Command) (string, bool) {
	k, ok := registry[cmd]
	return k.usage, ok
}

// Parse builds an operation from one playbook line. All failures are *simerr.PlaybookError.
func Parse(line string) (Operation, error) {
	fail := func(token string, reason string, a ...any) error {
		return &simerr.PlaybookError{Line: line, Token: token, Reason: fmt.Sprintf(reason, a...)}
	}

	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, fail("", "empty line")
	}
	cmd := Command(tokens[0])
	k, ok := registry[cmd]
	if !ok {
		return nil, fail(tokens[0], "unknown command (valid commands: %v)", Commands())
	}

	a := args{keys: map[string]string{}}
	for _, tok := range tokens[1:] {
		key, value, isKey := strings.Cut(tok, "=")
		// Keyword arguments only start once every positional argument was seen.
		if !isKey || (len(a.positional) < len(k.positional) && len(a.keys) == 0 && !k.accepts(key)) {
			if len(a.keys) > 0 {
				return nil, fail(tok, "positional argument after key=value arguments")
			}
			a.positional = append(a.positional, tok)
			continue
		}
		if _, allowed := k.keys[key]; !allowed {
			return nil, fail(tok, "unknown key %q for %s (usage: %s)", key, cmd, k.usage)
		}
		if _, dup := a.keys[key]; dup {
			return nil, fail(tok, "duplicate key %q", key)
		}
		if value == "" {
			return nil, fail(tok, "missing value for key %q", key)
		}
		a.keys[key] = value
	}
	if k.variadic && len(a.positional) > 0 {
		a.positional = []string{strings.Join(a.positional, " ")}
	}
	if len(a.positional) != len(k.positional) {
		return nil, fail("", "wrong number of arguments, expected %d (usage: %s)", len(k.positional), k.usage)
	}
	for key, required := range k.keys {
		if _, ok := a.keys[key]; required && !ok {
			return nil, fail("", "missing required key %q (usage: %s)", key, k.usage)
		}
	}

	op, err := k.build(a)
	if err != nil {
		token := ""
		var ke *tokenError
		if errors.As(err, &ke) {
			token = ke.token
		}
		return nil, fail(token, "%s", err)
	}
	return op, nil
}

func (k kind) accepts(key string) bool {
	_, ok := k.keys[key]
	return ok
}

// FromDict builds an operation from the field map returned by AsDict.
func FromDict(dict map[string]any) (Operation, error) {
	name, _ := dict["command"].(string)
	k, ok := registry[Command(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", simerr.ErrPlaybook, name)
	}
	a := args{keys: map[string]string{}}
	for _, p := range k.positional {
		v, ok := dict[p]
		if !ok {
			return nil, fmt.Errorf("%w: %s is missing %q", simerr.ErrPlaybook, name, p)
		}
		a.positional = append(a.positional, formatValue(v))
	}
	for key, v := range dict {
		if key == "command" || slices.Contains(k.positional, key) {
			continue
		}
		if !k.accepts(key) {
			return nil, fmt.Errorf("%w: unknown key %q for %s", simerr.ErrPlaybook, key, name)
		}
		a.keys[key] = formatValue(v)
	}
	for key, required := range k.keys {
		if _, ok := a.keys[key]; required && !ok {
			return nil, fmt.Errorf("%w: %s is missing %q", simerr.ErrPlaybook, name, key)
		}
	}
	op, err := k.build(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", simerr.ErrPlaybook, name, err)
	}
	return op, nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// Nanosecond precision, float seconds carry noise below that.
		s := strconv.FormatFloat(t, 'f', 9, 64)
		return strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}
