// Package converter runs the conversion pipeline: load and validate a graph,
// lower every node through the registry, assemble the tensor program and wrap
// it for execution.
package converter

import (
	"context"
	"errors"
	"fmt"
	goruntime "runtime"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/mlconvert/internal/backend/cpu"
	"github.com/born-ml/mlconvert/internal/capability"
	"github.com/born-ml/mlconvert/internal/graph"
	"github.com/born-ml/mlconvert/internal/lowering"
	"github.com/born-ml/mlconvert/internal/onnx"
	"github.com/born-ml/mlconvert/internal/program"
	"github.com/born-ml/mlconvert/internal/runtime"
	"github.com/born-ml/mlconvert/internal/tensor"
)

// Options configure one conversion. The zero value converts for the default
// tensor target with the error policy on the CPU backend.
type Options struct {
	Target   capability.Target
	Policy   lowering.UnknownPolicy
	Workers  int // lowering parallelism; <= 0 uses GOMAXPROCS
	Logger   logr.Logger
	Registry *lowering.Registry // nil uses lowering.Default()
	Backend  tensor.Backend     // nil uses the CPU backend
}

func (o Options) withDefaults() Options {
	if o.Target.Kind == "" {
		o.Target = capability.DefaultTarget(capability.KindTensor)
	}
	if o.Workers <= 0 {
		o.Workers = goruntime.GOMAXPROCS(0)
	}
	if o.Registry == nil {
		o.Registry = lowering.Default()
	}
	if o.Backend == nil {
		o.Backend = cpu.New()
	}
	return o
}

// Result is a finished conversion.
type Result struct {
	Graph     *graph.Graph
	Program   *program.Program
	Transform *runtime.Transform
}

// Convert converts model. The sample input, when given, resolves the runtime
// form of the graph input: its dtype and fixed dims are checked, and a string
// input takes the chunk count of the sample's codes.
func Convert(ctx context.Context, model *onnx.ModelProto, sample *tensor.RawTensor, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := opts.Logger.WithValues("target", opts.Target.String())

	g, err := graph.Load(model)
	if err != nil {
		return nil, err
	}
	log.Info("loaded graph", "graph", g.Name, "nodes", len(g.Nodes), "initializers", len(g.Initializers))

	if sample != nil {
		if g, err = resolveInputs(g, sample); err != nil {
			return nil, err
		}
	}

	if missing := opts.Registry.Unsupported(g); len(missing) > 0 {
		n := missing[0]
		return nil, &lowering.UnsupportedOperatorError{OpType: n.OpType, Domain: n.Domain}
	}

	subgraphs, err := lowerAll(ctx, g, opts, log)
	if err != nil {
		return nil, err
	}

	prog, err := assemble(g, subgraphs)
	if err != nil {
		return nil, err
	}
	if err := prog.Validate(opts.Target); err != nil {
		return nil, err
	}

	tr, err := runtime.NewTransform(prog, opts.Backend)
	if err != nil {
		return nil, err
	}
	log.Info("converted graph", "graph", g.Name, "primitives", len(prog.Nodes), "constants", len(prog.Initializers))
	return &Result{Graph: g, Program: prog, Transform: tr}, nil
}

// lowerAll lowers the nodes of g in parallel. Results are kept by node index,
// and on failure the error of the earliest failing node is returned. A failing
// node does not cancel its siblings, so the reported error does not depend on
// scheduling.
func lowerAll(ctx context.Context, g *graph.Graph, opts Options, log logr.Logger) ([]*program.Subgraph, error) {
	subgraphs := make([]*program.Subgraph, len(g.Nodes))
	errs := make([]error, len(g.Nodes))

	var eg errgroup.Group
	eg.SetLimit(opts.Workers)
	for i, n := range g.Nodes {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = fmt.Errorf("lowering: %w", err)
				return errs[i]
			}
			lctx := lowering.NewContext(g, n, lowering.Options{
				Target: opts.Target,
				Policy: opts.Policy,
				Logger: log,
			})
			sg, err := opts.Registry.Lower(lctx)
			if err != nil {
				errs[i] = err
				return err
			}
			subgraphs[i] = sg
			return nil
		})
	}
	_ = eg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return subgraphs, nil
}

// assemble merges the subgraphs in node order.
func assemble(g *graph.Graph, subgraphs []*program.Subgraph) (*program.Program, error) {
	inputs := make([]program.Value, len(g.Inputs))
	for i, v := range g.Inputs {
		inputs[i] = program.Value{Name: v.Name, Spec: v.Spec}
	}
	outputs := make([]program.Value, len(g.Outputs))
	for i, v := range g.Outputs {
		outputs[i] = program.Value{Name: v.Name, Spec: v.Spec}
	}
	inits := make([]program.Initializer, len(g.Initializers))
	for i, init := range g.Initializers {
		inits[i] = program.Initializer{Name: init.Name, Tensor: init.Tensor}
	}

	b := program.NewBuilder(inputs, outputs, inits)
	for _, n := range g.Nodes {
		b.Reserve(n.Inputs...)
		b.Reserve(n.Outputs...)
	}
	for _, sg := range subgraphs {
		if err := b.Add(sg); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// resolveInputs checks sample against the single graph input and returns the
// graph with the input's runtime spec.
func resolveInputs(g *graph.Graph, sample *tensor.RawTensor) (*graph.Graph, error) {
	if len(g.Inputs) != 1 {
		return nil, fmt.Errorf("sample input given for a graph with %d inputs", len(g.Inputs))
	}
	decl := g.Inputs[0]
	got := sample.Spec()

	if decl.Spec.DType != tensor.String {
		if got.DType != decl.Spec.DType || !decl.Spec.Matches(sample.Shape()) {
			return nil, &runtime.InputShapeMismatchError{Input: decl.Name, Want: decl.Spec, Got: got}
		}
		return g, nil
	}

	// Strings arrive as int32 or int64 chunk codes with one extra trailing axis.
	want := tensor.Spec{DType: tensor.Int32, Dims: append(append([]int(nil), decl.Spec.Dims...), tensor.Unknown)}
	codes := got.DType == tensor.Int32 || got.DType == tensor.Int64
	if !codes || !want.Matches(sample.Shape()) {
		return nil, &runtime.InputShapeMismatchError{Input: decl.Name, Want: want, Got: got}
	}
	resolved := want.Clone()
	resolved.DType = got.DType
	resolved.Dims[len(resolved.Dims)-1] = sample.Shape()[len(resolved.Dims)-1]

	return g.WithInputs([]graph.Value{{Name: decl.Name, Spec: resolved}}), nil
}

// IsUserError reports whether err stems from the model, the target or the
// sample rather than from a lowering bug.
func IsUserError(err error) bool {
	var (
		malformed   *graph.MalformedGraphError
		unsupported *lowering.UnsupportedOperatorError
		version     *capability.UnsupportedTargetVersionError
		shape       *runtime.InputShapeMismatchError
	)
	return errors.As(err, &malformed) || errors.As(err, &unsupported) ||
		errors.As(err, &version) || errors.As(err, &shape)
}
