// Package lowering translates graph nodes into tensor-program subgraphs.
//
// Each operator type has a Strategy; the Registry dispatches a node to its
// strategy with a fresh Context and returns the emitted Subgraph.
package lowering

import (
	"sync"

	"golang.org/x/exp/slices"

	"github.com/born-ml/mlconvert/internal/graph"
	"github.com/born-ml/mlconvert/internal/program"
)

// Strategy lowers one node. It emits primitives through the Context and must
// write every output of ctx.Node().
type Strategy interface {
	Lower(ctx *Context) error
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx *Context) error

// Lower calls f.
func (f StrategyFunc) Lower(ctx *Context) error { return f(ctx) }

// Registry maps operator types to lowering strategies. It is populated once
// by NewRegistry and read-only afterwards, so one registry can serve
// concurrent lowerings.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates a registry with the built-in strategies. Custom
// strategies are added on top and replace built-ins of the same type.
func NewRegistry(custom map[string]Strategy) *Registry {
	r := &Registry{
		strategies: make(map[string]Strategy),
	}

	r.registerEncoders()
	r.registerPreprocessing()
	r.registerPassthrough()

	for opType, s := range custom {
		r.strategies[opType] = s
	}
	return r
}

// Default returns the process-wide registry of built-in strategies.
var Default = sync.OnceValue(func() *Registry {
	return NewRegistry(nil)
})

func (r *Registry) registerEncoders() {
	r.strategies["LabelEncoder"] = StrategyFunc(lowerLabelEncoder)
}

func (r *Registry) registerPreprocessing() {
	r.strategies["Scaler"] = StrategyFunc(lowerScaler)
	r.strategies["Binarizer"] = StrategyFunc(lowerBinarizer)
}

func (r *Registry) registerPassthrough() {
	r.strategies["Identity"] = StrategyFunc(lowerIdentity)
	r.strategies["Cast"] = StrategyFunc(lowerCast)
}

// Lookup returns the strategy for an operator type.
func (r *Registry) Lookup(opType string) (Strategy, bool) {
	s, ok := r.strategies[opType]
	return s, ok
}

// Lower dispatches the node of ctx to its strategy and returns the result.
func (r *Registry) Lower(ctx *Context) (*program.Subgraph, error) {
	n := ctx.Node()
	s, ok := r.strategies[n.OpType]
	if !ok {
		return nil, &UnsupportedOperatorError{OpType: n.OpType, Domain: n.Domain}
	}
	if err := s.Lower(ctx); err != nil {
		return nil, err
	}

	sg := ctx.Subgraph()
	ctx.Logger().V(1).Info("lowered node", "node", n.String(), "primitives", len(sg.Nodes), "constants", len(sg.Initializers))
	return sg, nil
}

// Unsupported returns the nodes of g no strategy is registered for.
func (r *Registry) Unsupported(g *graph.Graph) []*graph.Node {
	var out []*graph.Node
	for _, n := range g.Nodes {
		if _, ok := r.strategies[n.OpType]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// SupportedOps returns the registered operator types, sorted.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.strategies))
	for op := range r.strategies {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}
