// Package cli implements the ruta command line: standalone checking,
// compilation and evaluation of policy files, and a serve mode that runs
// an engine with hot reload.
package cli

import (
	"context"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruta-lang/ruta/internal/config"
	"github.com/ruta-lang/ruta/internal/engine"
	"github.com/ruta-lang/ruta/internal/pipeline"
	"github.com/ruta-lang/ruta/internal/rib"
	"github.com/ruta-lang/ruta/internal/vm"
)

const usage = `Usage: ruta <command> [arguments]

Commands:
  check <file...>      parse and type-check policy files
  compile <file>       compile one file and print its bytecode
  run <file> [flags]   evaluate a policy against a synthetic route
  serve <config.yaml>  serve configured policies
  watch <config.yaml>  serve with hot reload regardless of config

Run flags:
  -entry name          entrypoint to invoke (default: the unit's only one)
  -prefix p            route prefix, e.g. 10.0.0.0/24
  -next-hop a          next hop address
  -as-path l           AS path, e.g. 64500,64501
  -communities l       communities, e.g. 65000:100,65000:200
  -med n               multi-exit discriminator
  -local-pref n        local preference
  -rib path            SQLite route store for Rib/AsnSet externals
  -budget n            instruction budget per invocation
`

// Entry runs the CLI and returns the process exit code.
func Entry(args []string) int {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	switch args[0] {
	case "check":
		return cmdCheck(args[1:])
	case "compile":
		return cmdCompile(args[1:])
	case "run":
		return cmdRun(args[1:])
	case "serve":
		return cmdServe(args[1:], false)
	case "watch":
		return cmdServe(args[1:], true)
	case "help", "-help", "--help":
		fmt.Print(usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "ruta: unknown command %q\n", args[0])
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

// compileFile runs the pipeline over one file against the default
// surface, rendering any diagnostics.
func compileFile(path string) (*vm.Program, bool) {
	reg, err := DefaultRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ruta: %v\n", err)
		return nil, false
	}
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ruta: %v\n", err)
		return nil, false
	}
	res := pipeline.Compile(string(src), path, reg)
	renderDiagnostics(os.Stderr, string(src), res.Diags, stderrIsTTY())
	return res.Program, res.Program != nil
}

func cmdCheck(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "ruta check: no files")
		return 2
	}
	failed := 0
	for _, path := range args {
		if _, ok := compileFile(path); !ok {
			failed++
			continue
		}
		if stdoutIsTTY() {
			fmt.Printf("%s: \x1b[32mok\x1b[0m\n", path)
		} else {
			fmt.Printf("%s: ok\n", path)
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func cmdCompile(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "ruta compile: want exactly one file")
		return 2
	}
	prog, ok := compileFile(args[0])
	if !ok {
		return 1
	}
	fmt.Print(vm.Disassemble(prog))
	return 0
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	entry := fs.String("entry", "", "entrypoint to invoke")
	prefix := fs.String("prefix", "10.0.0.0/24", "route prefix")
	nextHop := fs.String("next-hop", "192.0.2.1", "next hop address")
	asPath := fs.String("as-path", "", "AS path")
	communities := fs.String("communities", "", "communities")
	med := fs.Int64("med", 0, "multi-exit discriminator")
	localPref := fs.Int64("local-pref", 100, "local preference")
	ribPath := fs.String("rib", "", "SQLite route store")
	budget := fs.Int("budget", 0, "instruction budget")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "ruta run: want exactly one file")
		return 2
	}

	route, err := routeFromFlags(*prefix, *nextHop, *asPath, *communities, *med, *localPref)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ruta run: %v\n", err)
		return 2
	}

	prog, ok := compileFile(fs.Arg(0))
	if !ok {
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bindings := routeBindings()
	if *ribPath != "" {
		store, err := rib.Open(*ribPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ruta run: %v\n", err)
			return 1
		}
		defer store.Close()
		for ref, fn := range rib.Bindings(ctx) {
			bindings[ref] = fn
		}
	}

	machine, err := vm.Attach(prog, bindings, vm.Options{Budget: *budget})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ruta run: %v\n", err)
		return 1
	}

	name := *entry
	if name == "" {
		entries := prog.Entrypoints()
		if len(entries) != 1 {
			fmt.Fprintf(os.Stderr, "ruta run: pick -entry from %v\n", entries)
			return 2
		}
		name = entries[0]
	}

	out, err := machine.Run(name, []vm.Value{vm.ExternalVal(route)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ruta run: %v\n", err)
		return 1
	}
	if out.HasValue {
		fmt.Printf("%s %s\n", out.Kind, out.Value)
	} else {
		fmt.Println(out.Kind)
	}
	return 0
}

func routeFromFlags(prefix, nextHop, asPath, communities string, med, localPref int64) (*Route, error) {
	p, err := netip.ParsePrefix(prefix)
	if err != nil {
		return nil, err
	}
	nh, err := netip.ParseAddr(nextHop)
	if err != nil {
		return nil, err
	}
	path, err := parseAsPath(asPath)
	if err != nil {
		return nil, err
	}
	comms, err := parseCommunities(communities)
	if err != nil {
		return nil, err
	}
	return &Route{
		Prefix:      p,
		NextHop:     nh,
		AsPath:      path,
		Communities: comms,
		Med:         med,
		LocalPref:   localPref,
	}, nil
}

func cmdServe(args []string, forceWatch bool) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "ruta serve: want exactly one config file")
		return 2
	}
	cfg, err := config.Load(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ruta serve: %v\n", err)
		return 1
	}
	if forceWatch {
		cfg.Watch = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bindings := routeBindings()
	if cfg.Rib.Path != "" {
		store, err := rib.Open(cfg.Rib.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ruta serve: %v\n", err)
			return 1
		}
		defer store.Close()
		for ref, fn := range rib.Bindings(ctx) {
			bindings[ref] = fn
		}
	}

	reg, err := DefaultRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ruta serve: %v\n", err)
		return 1
	}

	for _, pol := range cfg.Policies {
		e, err := engine.New(engine.Config{
			Path:     pol.Path,
			Entry:    pol.Entry,
			Registry: reg,
			Bindings: bindings,
			Options:  vm.Options{Budget: cfg.Budget},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "ruta serve: %s: %v\n", pol.Name, err)
			return 1
		}
		name := pol.Name
		e.SetLogf(func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "[%s] "+format+"\n", append([]any{name}, args...)...)
		})
		if diags, err := e.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "ruta serve: %s: %v\n", pol.Name, err)
			src, rerr := os.ReadFile(pol.Path)
			if rerr == nil {
				renderDiagnostics(os.Stderr, string(src), diags, stderrIsTTY())
			}
			return 1
		}
		if cfg.Watch {
			go func() {
				if err := e.Watch(ctx); err != nil && ctx.Err() == nil {
					fmt.Fprintf(os.Stderr, "ruta serve: %s: watch: %v\n", name, err)
				}
			}()
		}
	}

	fmt.Fprintf(os.Stderr, "serving %d policies, ^C to stop\n", len(cfg.Policies))
	<-ctx.Done()
	return 0
}
