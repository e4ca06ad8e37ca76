package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime"
	"slices"
	"syscall"
	"time"

	"github.com/encodeous/bgpsim/perf"
	"github.com/encodeous/bgpsim/state"
	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
)

// Options configures a single Start.
type Options struct {
	// In feeds the console, nil disables it.
	In  io.Reader
	Out io.Writer

	LogLevel slog.Level
	// LogOut receives human readable logs, defaults to stderr.
	LogOut io.Writer

	// Trace receives every played event as YAML when set.
	Trace       io.Writer
	TraceTables bool

	// DebugAddr serves /debug/metrics and /debug/vars when set.
	DebugAddr string
}

func setupDebugging(log *slog.Logger, addr string) {
	if addr == "" {
		return
	}
	go func() {
		log.Info("serving debug endpoints", "addr", addr)
		err := http.ListenAndServe(addr, nil)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("debug server stopped", "error", err)
		}
	}()
}

// NewLogger builds the logger used by the runtime: coloured output on w,
// optionally mirrored to a file at logPath.
func NewLogger(level slog.Level, prefix, logPath string, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(w, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: prefix,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if logPath != "" {
		err := os.MkdirAll(path.Dir(logPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	}

	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// ReadSimConfig loads, expands and validates a topology file. The built-in
// topology is used when the default path does not exist.
func ReadSimConfig(configPath string) (*state.SimCfg, error) {
	var cfg state.SimCfg
	file, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) || configPath != state.DefaultConfigPath {
			return nil, err
		}
		cfg = state.DefaultSimCfg()
	} else {
		err = yaml.Unmarshal(file, &cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	}
	state.ExpandSimConfig(&cfg)
	err = state.SimConfigValidator(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Start runs the simulator until it is cancelled, by the console, a signal or
// an error. initState, when set, receives the state before the main loop
// starts.
func Start(cfg state.SimCfg, opts Options, initState **state.State) error {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(context.Canceled)

	logger, err := NewLogger(opts.LogLevel, "bgpsim", cfg.LogPath, opts.LogOut)
	if err != nil {
		return err
	}

	topo, err := state.BuildTopology(&cfg)
	if err != nil {
		return err
	}

	dispatch := make(chan func(s *state.State) error, state.DispatchQueueSize)

	s := state.State{
		Topology: topo,
		Modules:  make(map[string]state.SimModule),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			SimCfg:          cfg,
			Log:             logger,
		},
	}
	if initState != nil {
		*initState = &s
	}

	setupDebugging(logger, opts.DebugAddr)

	s.Log.Info("init modules")
	err = initModules(&s, opts)
	if err != nil {
		Stop(&s)
		return err
	}
	s.Log.Info("init modules complete", "nodes", len(topo.Nodes()), "links", len(topo.Links()))

	if opts.Trace != nil {
		Get[*Trace](&s).Stream(opts.Trace, opts.TraceTables)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case <-c:
			s.Cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
			return
		}
	}()

	return MainLoop(&s, dispatch)
}

func initModules(s *state.State, opts Options) error {
	var modules []state.SimModule
	modules = append(modules, &Trace{})
	modules = append(modules, &Flights{})
	modules = append(modules, &Player{})
	modules = append(modules, &Console{In: opts.In, Out: opts.Out})

	for _, module := range modules {
		name := reflect.TypeOf(module).String()
		s.Modules[name] = module
		s.ModuleOrder = append(s.ModuleOrder, name)
		if err := module.Init(s); err != nil {
			return fmt.Errorf("init %s: %w", name, err)
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	var loopErr error
	for {
		select {
		case fun := <-dispatch:
			if fun == nil {
				goto endLoop
			}
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				loopErr = err
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > time.Millisecond*4 {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Debug("stopped main loop", "reason", context.Cause(s.Context))
	Stop(s)
	return loopErr
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	if s.DispatchChannel != nil {
		close(s.DispatchChannel)
	}
	s.Log.Debug("cleaning up modules")
	for _, name := range slices.Backward(s.ModuleOrder) {
		err := s.Modules[name].Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", name, "error", err)
		}
	}
	s.Log.Debug("stopped")
}
