package treefile

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/joeycumines/go-cbt/internal/blackboard"
	"github.com/joeycumines/go-cbt/internal/leaf"
	"github.com/joeycumines/go-cbt/internal/tree"
)

// Env is what a Factory gets to know about the leaf it builds.
type Env struct {
	Tree       string
	Node       string
	Blackboard *blackboard.Blackboard
}

// Factory builds the work of one leaf from its params.
type Factory func(env Env, params map[string]any) (tree.Work, error)

// Registry maps leaf kinds to factories. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]Factory)}
}

// Register adds a kind. Registering the same kind twice is an error.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" || f == nil {
		return fmt.Errorf("treefile: invalid registration of kind %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kinds[kind]; exists {
		return fmt.Errorf("treefile: kind %q already registered", kind)
	}
	r.kinds[kind] = f
	return nil
}

// MustRegister is Register, panicking on error.
func (r *Registry) MustRegister(kind string, f Factory) {
	if err := r.Register(kind, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory of kind.
func (r *Registry) Lookup(kind string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.kinds[kind]
	return f, ok
}

// Kinds returns every registered kind, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.kinds))
}

// Decode decodes params into a T. Unknown keys are rejected, durations may
// be given as strings ("250ms"), and scalars are converted where sensible.
func Decode[T any](params map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(params); err != nil {
		return out, fmt.Errorf("decode params: %w", err)
	}
	return out, nil
}

// DefaultRegistry returns a Registry with the built-in kinds:
//
//	steps    count (int), counter (blackboard key incremented per step)
//	sleep    duration
//	succeed
//	fail
//	set      key, value
//	expr     expr (boolean expression over the blackboard)
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister("steps", stepsFactory)
	r.MustRegister("sleep", sleepFactory)
	r.MustRegister("succeed", resultFactory(tree.Success))
	r.MustRegister("fail", resultFactory(tree.Failure))
	r.MustRegister("set", setFactory)
	r.MustRegister("expr", exprFactory)
	return r
}

func stepsFactory(env Env, params map[string]any) (tree.Work, error) {
	p, err := Decode[struct {
		Count   int    `mapstructure:"count"`
		Counter string `mapstructure:"counter"`
	}](params)
	if err != nil {
		return nil, err
	}
	if p.Count < 1 {
		return nil, fmt.Errorf("count must be positive, got %d", p.Count)
	}
	var fn func(ctx context.Context, step int) error
	if p.Counter != "" {
		fn = func(context.Context, int) error {
			env.Blackboard.Update(p.Counter, func(old any, ok bool) any {
				n, _ := old.(int)
				return n + 1
			})
			return nil
		}
	}
	return leaf.Steps(p.Count, fn), nil
}

func sleepFactory(env Env, params map[string]any) (tree.Work, error) {
	p, err := Decode[struct {
		Duration time.Duration `mapstructure:"duration"`
	}](params)
	if err != nil {
		return nil, err
	}
	if p.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", p.Duration)
	}
	return leaf.Sleep(p.Duration), nil
}

func resultFactory(state tree.State) Factory {
	return func(env Env, params map[string]any) (tree.Work, error) {
		if _, err := Decode[struct{}](params); err != nil {
			return nil, err
		}
		return leaf.Result(state), nil
	}
}

func setFactory(env Env, params map[string]any) (tree.Work, error) {
	p, err := Decode[struct {
		Key   string `mapstructure:"key"`
		Value any    `mapstructure:"value"`
	}](params)
	if err != nil {
		return nil, err
	}
	if p.Key == "" {
		return nil, errors.New("missing key")
	}
	return leaf.Set(env.Blackboard, p.Key, p.Value), nil
}

func exprFactory(env Env, params map[string]any) (tree.Work, error) {
	p, err := Decode[struct {
		Expr string `mapstructure:"expr"`
	}](params)
	if err != nil {
		return nil, err
	}
	if p.Expr == "" {
		return nil, errors.New("missing expr")
	}
	return leaf.Expr(p.Expr, env.Blackboard)
}
