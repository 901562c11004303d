package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-bridge/alloc"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/runtime"
	"github.com/wippyai/wasm-bridge/trace"
)

type options struct {
	wasmFile    string
	witFile     string
	configFile  string
	engine      string
	funcName    string
	args        string
	list        bool
	interactive bool
	metrics     bool
}

func main() {
	var o options
	flag.StringVar(&o.wasmFile, "wasm", "", "Path to core module (.wasm, or .wat text)")
	flag.StringVar(&o.witFile, "wit", "", "Path to WIT file declaring the exports")
	flag.StringVar(&o.configFile, "config", "", "Path to YAML config (optional)")
	flag.StringVar(&o.engine, "engine", "", "Engine override: "+strings.Join(engine.Names(), ", "))
	flag.StringVar(&o.funcName, "func", "", "Export to call")
	flag.StringVar(&o.args, "args", "[]", "Call arguments as a JSON array")
	flag.BoolVar(&o.list, "list", false, "List declared exports and exit")
	flag.BoolVar(&o.interactive, "i", false, "Interactive mode with TUI")
	flag.BoolVar(&o.metrics, "metrics", false, "Print dispatch metrics after the call")
	flag.Parse()

	if o.wasmFile == "" || o.witFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: bridge -wasm <file.wasm> -wit <file.wit> -list")
		fmt.Fprintln(os.Stderr, "       bridge -wasm <file.wasm> -wit <file.wit> -func name [-args '[...]']")
		fmt.Fprintln(os.Stderr, "       bridge -wasm <file.wasm> -wit <file.wit> -i  (interactive mode)")
		os.Exit(1)
	}

	if err := run(o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(o options) (runtime.Config, error) {
	cfg := runtime.DefaultConfig()
	if o.configFile != "" {
		var err error
		if cfg, err = runtime.LoadConfig(o.configFile); err != nil {
			return cfg, err
		}
	}
	if o.engine != "" {
		cfg.Engine = o.engine
	}
	if o.metrics {
		cfg.Metrics.Enabled = true
	}
	return cfg, cfg.Validate()
}

// session is everything a call needs; close releases it in reverse order.
type session struct {
	rt      *runtime.Runtime
	mod     *runtime.Module
	reg     *prometheus.Registry
	closers []func() error
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func openSession(ctx context.Context, o options, cfg runtime.Config, quiet bool) (*session, error) {
	s := &session{}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	logger := zap.NewNop()
	// the TUI owns the terminal, so it only logs to a file
	if !quiet || cfg.Log.File != "" {
		l, closeLog, err := runtime.NewLogger(cfg.Log)
		if err != nil {
			return nil, err
		}
		logger = l
		s.closers = append(s.closers, closeLog)
	}
	alloc.SetLogger(logger)
	engine.SetLogger(logger)

	tr, err := trace.New(cfg.Tracing, trace.WithAttributes(attribute.String("wasm.engine", cfg.Engine)))
	if err != nil {
		return nil, fmt.Errorf("create tracer: %w", err)
	}
	s.closers = append(s.closers, tr.Close)

	s.reg = prometheus.NewRegistry()
	s.rt, err = runtime.New(ctx,
		runtime.WithConfig(cfg),
		runtime.WithLogger(logger),
		runtime.WithTracer(tr),
		runtime.WithRegisterer(s.reg))
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	s.closers = append(s.closers, func() error { return s.rt.Close(context.Background()) })

	witText, err := os.ReadFile(o.witFile)
	if err != nil {
		return nil, fmt.Errorf("read wit: %w", err)
	}
	data, err := os.ReadFile(o.wasmFile)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	if strings.EqualFold(filepath.Ext(o.wasmFile), ".wat") {
		s.mod, err = s.rt.LoadWAT(ctx, string(data), string(witText))
	} else {
		s.mod, err = s.rt.Load(ctx, data, string(witText))
	}
	if err != nil {
		return nil, fmt.Errorf("load module: %w", err)
	}

	ok = true
	return s, nil
}

func run(o options, out io.Writer) error {
	ctx := context.Background()

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	if o.interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		s, err := openSession(ctx, o, cfg, true)
		if err != nil {
			return err
		}
		defer s.close()
		return runInteractive(o.wasmFile, s.mod)
	}

	s, err := openSession(ctx, o, cfg, false)
	if err != nil {
		return err
	}
	defer s.close()

	exports := s.mod.Exports()
	if o.list || o.funcName == "" {
		fmt.Fprintf(out, "Module: %s (%s)\n", o.wasmFile, s.rt.Engine())
		fmt.Fprintf(out, "\nExported functions:\n")
		for _, e := range exports {
			fmt.Fprintf(out, "  %s\n", e)
		}
		return nil
	}

	var target *runtime.Export
	for i := range exports {
		if exports[i].Name == o.funcName {
			target = &exports[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%q is not declared in %s", o.funcName, o.witFile)
	}

	args, err := decodeArgs(o.args, target.Signature)
	if err != nil {
		return err
	}

	inst, err := s.mod.Instantiate(ctx)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer inst.Close(ctx)

	result, err := inst.Call(ctx, o.funcName, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", o.funcName, err)
	}

	text, err := formatResult(target.Signature.Result, result, isTerminal(out))
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(out, text)

	if o.metrics {
		return writeMetrics(out, s.reg)
	}
	return nil
}

func writeMetrics(out io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	for _, f := range families {
		if _, err := expfmt.MetricFamilyToText(out, f); err != nil {
			return err
		}
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
