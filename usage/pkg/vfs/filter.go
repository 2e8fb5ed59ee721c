package vfs

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/thinkparq/fsstrata/common/units"
)

// Predicate is a caller supplied test on an entry.
type Predicate interface {
	Match(Entry) bool
}

// PredicateFunc adapts a function to a Predicate.
type PredicateFunc func(Entry) bool

func (f PredicateFunc) Match(e Entry) bool {
	return f(e)
}

// Filter selects entries. The zero value matches everything.
type Filter struct {
	Type FileType
	// MinSize and MaxSize bound the size of matching entries. MaxSize 0 means unbounded.
	MinSize int64
	MaxSize int64
	// Exclude lists paths that never match.
	Exclude []string
	// ExcludeTrees lists directories that never match, together with everything below them.
	ExcludeTrees []string
	Predicate    Predicate
}

func (f Filter) Match(e Entry) bool {
	if f.Type != AnyType && e.Type != f.Type {
		return false
	}
	if e.Size < f.MinSize || (f.MaxSize > 0 && e.Size > f.MaxSize) {
		return false
	}
	if slices.Contains(f.Exclude, e.Path) {
		return false
	}
	if slices.ContainsFunc(f.ExcludeTrees, func(dir string) bool { return within(e.Path, dir) }) {
		return false
	}
	return f.Predicate == nil || f.Predicate.Match(e)
}

func (f Filter) String() string {
	parts := []string{"type=" + f.Type.String()}
	if f.MinSize > 0 {
		parts = append(parts, fmt.Sprintf("min_size=%d", f.MinSize))
	}
	if f.MaxSize > 0 {
		parts = append(parts, fmt.Sprintf("max_size=%d", f.MaxSize))
	}
	if len(f.Exclude) > 0 {
		parts = append(parts, fmt.Sprintf("exclude=%v", f.Exclude))
	}
	if len(f.ExcludeTrees) > 0 {
		parts = append(parts, fmt.Sprintf("exclude_trees=%v", f.ExcludeTrees))
	}
	return strings.Join(parts, " ")
}

// GlobPredicate matches entries whose path matches any of the doublestar patterns. Patterns are
// rooted at the file system root, a leading "/" is optional.
type GlobPredicate struct {
	patterns []string
}

func NewGlobPredicate(patterns ...string) (*GlobPredicate, error) {
	g := &GlobPredicate{}
	for _, p := range patterns {
		p = strings.TrimPrefix(p, "/")
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
		g.patterns = append(g.patterns, p)
	}
	return g, nil
}

func (g *GlobPredicate) Match(e Entry) bool {
	rel := strings.TrimPrefix(e.Path, "/")
	for _, p := range g.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// queryEnv is the environment query expressions are evaluated against.
type queryEnv struct {
	Path  string `expr:"path"`
	Name  string `expr:"name"`
	Type  string `expr:"type"`
	Size  int64  `expr:"size"`
	Depth int    `expr:"depth"`
}

func newQueryEnv(e Entry) queryEnv {
	return queryEnv{
		Path:  e.Path,
		Name:  path.Base(e.Path),
		Type:  e.Type.String(),
		Size:  e.Size,
		Depth: strings.Count(e.Path, "/"),
	}
}

// Query is a compiled boolean expression over entries, for example
// `type == "file" && size > 4096 && glob("**/*.jpg", path)`.
type Query struct {
	source  string
	program *vm.Program
}

// CompileQuery compiles q. Available variables are path, name, type ("file" or "dir"), size and
// depth, functions are glob(pattern, path) and bytes(size literal).
func CompileQuery(q string) (*Query, error) {
	program, err := expr.Compile(q,
		expr.Env(queryEnv{}),
		expr.AsBool(),
		expr.Function("glob", func(params ...any) (any, error) {
			return doublestar.Match(strings.TrimPrefix(params[0].(string), "/"), strings.TrimPrefix(params[1].(string), "/"))
		}, new(func(string, string) bool)),
		expr.Function("bytes", func(params ...any) (any, error) {
			return units.ParseSize(params[0].(string))
		}, new(func(string) int64)),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", q, err)
	}
	return &Query{source: q, program: program}, nil
}

// Eval runs the query against e.
func (q *Query) Eval(e Entry) (bool, error) {
	out, err := expr.Run(q.program, newQueryEnv(e))
	if err != nil {
		return false, fmt.Errorf("evaluating query %q on %s: %w", q.source, e.Path, err)
	}
	return out.(bool), nil
}

// Match implements Predicate. Evaluation errors count as no match.
func (q *Query) Match(e Entry) bool {
	ok, err := q.Eval(e)
	return err == nil && ok
}

func (q *Query) String() string {
	return q.source
}
