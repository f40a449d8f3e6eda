package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"golang.org/x/exp/slices"

	"github.com/born-ml/mlconvert/convert"
	"github.com/born-ml/mlconvert/internal/capability"
	"github.com/born-ml/mlconvert/internal/config"
	"github.com/born-ml/mlconvert/internal/converter"
	"github.com/born-ml/mlconvert/internal/lowering"
	"github.com/born-ml/mlconvert/onnx"
	"github.com/born-ml/mlconvert/tensor"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitBadModel = 3
)

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintf(w, "mlconvert %s - lower classical ML graphs to tensor programs\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version                      Show version")
	fmt.Fprintln(w, "  ops                          List supported operators")
	fmt.Fprintln(w, "  inspect MODEL                Summarise a model")
	fmt.Fprintln(w, "  convert [flags] MODEL        Convert and write the tensor program as ONNX")
	fmt.Fprintln(w, "  run [flags] MODEL VALUE...   Convert and transform the given values")
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "mlconvert %s\n", version)
		return exitOK
	case "ops":
		for _, op := range convert.SupportedOps() {
			fmt.Fprintln(stdout, op)
		}
		return exitOK
	case "inspect":
		err = inspect(args[1:], stdout)
	case "convert":
		err = convertCmd(args[1:], stdout, stderr)
	case "run":
		err = runCmd(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return exitUsage
	case converter.IsUserError(err):
		fmt.Fprintf(stderr, "mlconvert: %v\n", err)
		return exitBadModel
	default:
		fmt.Fprintf(stderr, "mlconvert: %v\n", err)
		return exitFailure
	}
}

func inspect(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: inspect MODEL", errUsage)
	}
	model, err := onnx.ReadFile(args[0])
	if err != nil {
		return err
	}
	info := onnx.Inspect(model)
	fmt.Fprintf(stdout, "producer:  %s %s\n", info.ProducerName, info.ProducerVersion)
	fmt.Fprintf(stdout, "ir:        %d\n", info.IRVersion)
	fmt.Fprintf(stdout, "opset:     %d (ml %d)\n", info.OpsetVersion, info.MLOpsetVersion)
	fmt.Fprintf(stdout, "inputs:    %s\n", strings.Join(info.InputNames, ", "))
	fmt.Fprintf(stdout, "outputs:   %s\n", strings.Join(info.OutputNames, ", "))
	fmt.Fprintf(stdout, "nodes:     %d\n", info.NodeCount)
	fmt.Fprintf(stdout, "operators: %s\n", strings.Join(info.OpTypes, ", "))
	return nil
}

// settings are the conversion flags shared by convert and run.
type settings struct {
	configPath string
	target     string
	unknown    string
	workers    int
	verbosity  int
	width      int
}

func (s *settings) register(fs *flag.FlagSet) {
	fs.StringVar(&s.configPath, "config", "", "HCL settings file")
	fs.StringVar(&s.target, "target", "", "target as kind[@version], e.g. onnx@v1.13.0")
	fs.StringVar(&s.unknown, "unknown", "", "unknown category policy: error or default")
	fs.IntVar(&s.workers, "workers", -1, "parallel lowering workers (0 = one per CPU)")
	fs.IntVar(&s.verbosity, "v", -1, "log verbosity")
	fs.IntVar(&s.width, "width", 0, "chunk width of string inputs (0 = fit the categories)")
}

// resolve merges the settings file and the flags; flags win.
func (s *settings) resolve() (config.Config, error) {
	cfg := config.Default()
	if s.configPath != "" {
		var err error
		if cfg, err = config.Load(s.configPath, config.Environ()); err != nil {
			return config.Config{}, err
		}
	}
	if s.target != "" {
		t, err := capability.ParseTarget(s.target)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Target = t
	}
	if s.unknown != "" {
		p, err := lowering.ParseUnknownPolicy(s.unknown)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Policy = p
	}
	if s.workers >= 0 {
		cfg.Workers = s.workers
	}
	if s.verbosity >= 0 {
		cfg.Verbosity = s.verbosity
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}

func (s *settings) convert(path string, sample *tensor.RawTensor, stderr io.Writer) (convert.Transform, error) {
	cfg, err := s.resolve()
	if err != nil {
		return nil, err
	}
	model, err := onnx.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return convert.Convert(model, cfg.Target.Kind, sample,
		convert.WithTargetVersion(cfg.Target.Version),
		convert.WithUnknownPolicy(cfg.Policy),
		convert.WithWorkers(cfg.Workers),
		convert.WithLogger(newLogger(stderr, cfg.Verbosity)),
	)
}

func convertCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var s settings
	s.register(fs)
	out := fs.String("o", "", "write the tensor program as ONNX to this file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: convert [flags] MODEL", errUsage)
	}

	var sample *tensor.RawTensor
	if s.width > 0 {
		var err error
		if sample, err = tensor.EncodeStrings([]string{""}, s.width); err != nil {
			return err
		}
	}
	tr, err := s.convert(fs.Arg(0), sample, stderr)
	if err != nil {
		return err
	}

	counts := tr.Primitives()
	ops := make([]string, 0, len(counts))
	for op := range counts {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	for _, op := range ops {
		fmt.Fprintf(stdout, "%-10s %d\n", op, counts[op])
	}

	if *out == "" {
		return nil
	}
	exported, err := tr.ExportONNX()
	if err != nil {
		return err
	}
	return onnx.WriteFile(*out, exported)
}

func runCmd(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var s settings
	s.register(fs)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("%w: run [flags] MODEL VALUE...", errUsage)
	}
	path, values := fs.Arg(0), fs.Args()[1:]

	model, err := onnx.ReadFile(path)
	if err != nil {
		return err
	}
	info := onnx.Inspect(model)
	if len(info.InputNames) != 1 {
		return fmt.Errorf("run needs a model with one input, %s has %d", path, len(info.InputNames))
	}

	// Declared input dtype decides how the values are parsed.
	probe, err := s.convert(path, nil, io.Discard)
	if err != nil {
		return err
	}
	spec := probe.Inputs()[0].Spec
	var (
		input  *tensor.RawTensor
		sample *tensor.RawTensor
	)
	switch spec.DType {
	case tensor.Int32:
		// String input re-bound to chunk codes.
		input, err = tensor.EncodeStrings(values, max(s.width, spec.Dims[len(spec.Dims)-1]))
		sample = input
	case tensor.Int64:
		input, err = parseValues(values, func(v string) (int64, error) { return strconv.ParseInt(v, 10, 64) })
	case tensor.Float32:
		input, err = parseValues(values, func(v string) (float32, error) {
			f, err := strconv.ParseFloat(v, 32)
			return float32(f), err
		})
	case tensor.Float64:
		input, err = parseValues(values, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
	default:
		return fmt.Errorf("run: inputs of type %s are not supported", spec.DType)
	}
	if err != nil {
		return err
	}

	tr := probe
	if sample != nil && !spec.Matches(sample.Shape()) {
		if tr, err = s.convert(path, sample, stderr); err != nil {
			return err
		}
	}
	out, err := tr.Transform(input)
	if err != nil {
		return err
	}
	return printTensor(stdout, out)
}

func parseValues[T tensor.DType](values []string, parse func(string) (T, error)) (*tensor.RawTensor, error) {
	data := make([]T, len(values))
	for i, v := range values {
		x, err := parse(v)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		data[i] = x
	}
	return tensor.FromSlice(data, tensor.Shape{len(data)})
}

func printTensor(w io.Writer, t *tensor.RawTensor) error {
	switch t.DType() {
	case tensor.Int64:
		fmt.Fprintln(w, tensor.Values[int64](t))
	case tensor.Int32:
		fmt.Fprintln(w, tensor.Values[int32](t))
	case tensor.Float32:
		fmt.Fprintln(w, tensor.Values[float32](t))
	case tensor.Float64:
		fmt.Fprintln(w, tensor.Values[float64](t))
	case tensor.Uint8:
		fmt.Fprintln(w, tensor.Values[uint8](t))
	case tensor.Bool:
		fmt.Fprintln(w, tensor.Values[bool](t))
	default:
		return fmt.Errorf("cannot print %s output", t.DType())
	}
	return nil
}
