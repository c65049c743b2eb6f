package cli

import (
	stdcontext "context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Paintersrp/tasktide/internal/apps"
	"github.com/Paintersrp/tasktide/internal/cliutil"
	"github.com/Paintersrp/tasktide/internal/config"
	"github.com/Paintersrp/tasktide/internal/engine"
	"github.com/Paintersrp/tasktide/internal/logmux"
	"github.com/Paintersrp/tasktide/internal/runtime"
	"github.com/Paintersrp/tasktide/internal/runtime/desktop"
	"github.com/Paintersrp/tasktide/internal/runtime/process"
	"github.com/Paintersrp/tasktide/internal/telemetry"
	"github.com/Paintersrp/tasktide/internal/window"
)

const eventBuffer = 256

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	var (
		configFile string
		envFile    string
	)

	root := &cobra.Command{
		Use:   "tasktide",
		Short: "Process manager with deadline-driven graceful termination",
	}

	root.PersistentFlags().
		StringVarP(&configFile, "config", "c", config.DefaultPath, "Path to configuration file")
	root.PersistentFlags().
		StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before the configuration")

	ctx := &context{configFile: &configFile, envFile: &envFile}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return ctx.close(cmd.Context())
	}

	root.AddCommand(newTuiCmd(ctx))
	root.AddCommand(newListCmd(ctx))
	root.AddCommand(newKillCmd(ctx))
	root.AddCommand(newServeCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))
	root.AddCommand(newVersionCmd())

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, cliCtx := newRootCommand()
	root.SetContext(ctx)

	err := root.ExecuteContext(ctx)
	if closeErr := cliCtx.close(ctx); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// platform bundles the OS surfaces the engine drives.
type platform struct {
	snapshots runtime.Snapshotter
	control   runtime.ProcessControl
	surface   runtime.WindowSurface
	keyboard  runtime.Keyboard
	icons     engine.IconResolver
}

func defaultPlatform() *platform {
	surface, keyboard := desktop.New()
	return &platform{
		snapshots: process.NewSnapshotter(),
		control:   process.NewControl(),
		surface:   surface,
		keyboard:  keyboard,
		icons:     process.NewExecutableIcons(),
	}
}

type context struct {
	configFile *string
	envFile    *string

	// platform and clock are replaced by tests.
	platform *platform
	clock    engine.Clock

	mu        sync.RWMutex
	cfg       *config.Config
	logger    *slog.Logger
	shutdown  telemetry.ShutdownFunc
	logStream *eventStream
}

// loadConfig resolves the dotenv file and configuration once per invocation.
// Flags left at their defaults tolerate missing files.
func (c *context) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg != nil {
		return c.cfg, nil
	}

	envExplicit := flagChanged(cmd, "env-file")
	if err := config.LoadDotEnv(deref(c.envFile), envExplicit); err != nil {
		return nil, err
	}
	cfg, err := config.Load(deref(c.configFile), flagChanged(cmd, "config"))
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// startLogging builds the process logger. Interactive commands pass
// io.Discard so records never reach the terminal unless a log file is set.
func (c *context) startLogging(cmd *cobra.Command, cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logger != nil {
		return c.logger, nil
	}
	format, err := telemetry.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	logger, shutdown, err := telemetry.Setup(cmd.Context(), telemetry.Options{
		Level:         cfg.Logging.Level,
		Format:        format,
		File:          cfg.Logging.File,
		OpenTelemetry: cfg.Logging.OpenTelemetry,
		Writer:        w,
	})
	if err != nil {
		return nil, err
	}
	c.logger = logger
	c.shutdown = shutdown
	return logger, nil
}

func (c *context) close(ctx stdcontext.Context) error {
	c.mu.Lock()
	shutdown := c.shutdown
	c.shutdown = nil
	c.mu.Unlock()
	if shutdown == nil {
		return nil
	}
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	// The command context is usually cancelled by now; flushing must not be.
	return shutdown(stdcontext.WithoutCancel(ctx))
}

func (c *context) getPlatform() *platform {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.platform == nil {
		c.platform = defaultPlatform()
	}
	return c.platform
}

type managerOptions struct {
	events    chan<- engine.Event
	forceKill bool
	skipIcons bool
}

// newManager wires the engine from configuration and the platform surfaces.
func (c *context) newManager(cfg *config.Config, opts managerOptions) (*engine.Manager, error) {
	p := c.getPlatform()

	chord, err := runtime.ParseChord(cfg.Termination.SaveShortcut)
	if err != nil {
		return nil, err
	}
	scope, err := engine.ParseSearchScope(cfg.Search.Scope)
	if err != nil {
		return nil, err
	}

	termCfg := engine.TerminatorConfig{
		GracePeriod:      cfg.Termination.GracePeriod.Duration,
		FinalGracePeriod: cfg.Termination.FinalGracePeriod.Duration,
		SaveAttempts:     cfg.Termination.SaveAttempts,
		ExitCode:         cfg.Termination.ExitCode,
		Shortcut:         chord,
	}
	if opts.forceKill {
		termCfg.SaveAttempts = 0
	}

	catalog := apps.NewCatalog(
		apps.WithSaveCapable(cfg.Apps.SaveCapable...),
		apps.WithWindowClasses(cfg.Apps.WindowClasses),
	)
	termOpts := []engine.TerminatorOption{engine.WithTerminatorConfig(termCfg)}
	if c.clock != nil {
		termOpts = append(termOpts, engine.WithTerminatorClock(c.clock))
	}
	if p.surface != nil && p.keyboard != nil {
		termOpts = append(termOpts, engine.WithSaveSupport(catalog, window.NewFinder(p.surface, catalog), p.keyboard))
	}
	terminator := engine.NewTerminator(p.control, termOpts...)

	mgrOpts := []engine.Option{
		engine.WithTickInterval(cfg.Scheduler.TickInterval.Duration),
		engine.WithSearchScope(scope),
	}
	if opts.events != nil {
		mgrOpts = append(mgrOpts, engine.WithEvents(opts.events))
	}
	if p.icons != nil && !opts.skipIcons {
		mgrOpts = append(mgrOpts, engine.WithIconResolver(p.icons))
	}
	if c.clock != nil {
		mgrOpts = append(mgrOpts, engine.WithClock(c.clock))
	}
	return engine.NewManager(p.snapshots, terminator, mgrOpts...), nil
}

// trackEvents fans manager events through the mux, logs each one and
// republishes it on a stream that interactive consumers may subscribe to.
// The returned channel closes once events is closed and fully drained.
func (c *context) trackEvents(events <-chan engine.Event, logger *slog.Logger, buffer int) <-chan struct{} {
	if buffer <= 0 {
		buffer = 1
	}
	stream := newEventStream(buffer)

	c.mu.Lock()
	c.logStream = stream
	c.mu.Unlock()

	mux := logmux.New(buffer)
	mux.Add(events)
	go mux.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			c.mu.Lock()
			if c.logStream == stream {
				c.logStream = nil
			}
			c.mu.Unlock()
			stream.Close()
		}()
		for evt := range mux.Output() {
			if logger != nil {
				cliutil.LogEvent(stdcontext.Background(), logger, evt)
			}
			stream.Publish(evt)
		}
	}()
	return done
}

func (c *context) subscribeEvents(buffer int) (<-chan engine.Event, func(), bool) {
	c.mu.RLock()
	stream := c.logStream
	c.mu.RUnlock()
	if stream == nil {
		return nil, nil, false
	}
	return stream.Subscribe(buffer)
}

// eventStream republishes events to subscribers and keeps a short backlog so
// late subscribers still see recent history.
type eventStream struct {
	mu       sync.Mutex
	closed   bool
	subs     map[chan engine.Event]struct{}
	backlog  []engine.Event
	capacity int
}

func newEventStream(capacity int) *eventStream {
	if capacity <= 0 {
		capacity = 1
	}
	return &eventStream{
		subs:     make(map[chan engine.Event]struct{}),
		capacity: capacity,
	}
}

func (s *eventStream) Subscribe(buffer int) (<-chan engine.Event, func(), bool) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan engine.Event, buffer)

	s.mu.Lock()
	if s.closed {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}, false
	}
	backlog := append([]engine.Event(nil), s.backlog...)
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	for _, evt := range backlog {
		select {
		case ch <- evt:
		default:
		}
	}

	release := func() {
		s.mu.Lock()
		if s.subs != nil {
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		}
		s.mu.Unlock()
	}

	return ch, release, true
}

func (s *eventStream) Publish(evt engine.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.backlog = append(s.backlog, evt)
	if len(s.backlog) > s.capacity {
		s.backlog = s.backlog[len(s.backlog)-s.capacity:]
	}
	for ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (s *eventStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.backlog = nil
}

func supportsInteractiveOutput(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Changed
	}
	if f := cmd.InheritedFlags().Lookup(name); f != nil {
		return f.Changed
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
