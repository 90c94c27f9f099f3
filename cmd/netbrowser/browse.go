package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pkt.systems/netbrowser/core"
	"pkt.systems/netbrowser/internal/adblock"
	"pkt.systems/netbrowser/internal/appconfig"
	"pkt.systems/netbrowser/internal/cdpview"
	"pkt.systems/netbrowser/internal/command"
	"pkt.systems/netbrowser/internal/eventbus"
	"pkt.systems/netbrowser/internal/format"
	"pkt.systems/netbrowser/internal/persist"
	"pkt.systems/netbrowser/internal/userhome"
	"pkt.systems/netbrowser/schema"
	"pkt.systems/pslog"
)

const prompt = "> "

type browseOptions struct {
	cfgPath   string
	headless  bool
	remoteURL string
	noWatch   bool
}

func newBrowseCmd() *cobra.Command {
	var opts browseOptions
	cmd := &cobra.Command{
		Use:   "browse [url|search]",
		Short: "Launch the browser and read commands from stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(opts.cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				cfg.Browser.Headless = opts.headless
			}
			if opts.remoteURL != "" {
				cfg.Browser.RemoteURL = opts.remoteURL
			}
			initial := ""
			if len(args) == 1 {
				initial = args[0]
			}
			return runBrowse(cmd.Context(), cfg, opts, initial, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.cfgPath, "config", "c", "", "config path (default ~/.netbrowser/config.yaml)")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "run the browser without a window")
	cmd.Flags().StringVar(&opts.remoteURL, "remote", "", "attach to a running browser's DevTools URL")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "do not reload privacy settings when the config file changes")
	return cmd
}

func runBrowse(ctx context.Context, cfg appconfig.Config, opts browseOptions, initial string, in io.Reader, out io.Writer) error {
	logger := pslog.Ctx(ctx)
	svcCfg, err := schema.NormalizeServiceConfig(cfg.ServiceConfig())
	if err != nil {
		return err
	}
	store, err := persist.NewStoreWithLogger(svcCfg.StateDir, logger)
	if err != nil {
		return err
	}
	bus := eventbus.New(logger)

	if cfg.Browser.RemoteURL == "" && cfg.Browser.UserDataDir != "" {
		if _, err := userhome.EnsureProfile(cfg.Browser.UserDataDir, userhome.ProfileData{
			DownloadDir: cfg.Downloads.Path,
			DoNotTrack:  cfg.Privacy.DoNotTrack,
		}); err != nil {
			return fmt.Errorf("browser profile: %w", err)
		}
	}

	host := cdpview.New(cdpview.Options{
		ExecPath:     cfg.Browser.ExecPath,
		RemoteURL:    cfg.Browser.RemoteURL,
		Headless:     cfg.Browser.Headless,
		UserDataDir:  cfg.Browser.UserDataDir,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
		Flags:        cfg.Browser.Flags,
		Author:       cfg.Author,
		Config:       cfg.HostConfig(),
		Logger:       logger,
	})
	if err := host.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := host.Close(); err != nil {
			logger.Warn("browse host close failed", "err", err)
		}
	}()

	shell, err := core.NewShell(svcCfg, core.ShellDeps{
		Views:          host,
		Host:           host,
		Store:          store,
		EventSink:      bus,
		Logger:         logger,
		BlockingScript: adblock.Script,
	})
	if err != nil {
		return err
	}
	host.SetDownloadListener(shell.Downloads())
	defer shell.Shutdown()

	handler := command.NewHandler(shell, out, logger)
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	shell.Start(ctx)
	if initial != "" {
		if err := handler.Handle(ctx, initial); err != nil {
			handler.Print("error: " + err.Error())
		}
	}
	if !opts.noWatch {
		watchConfig(ctx, opts.cfgPath, shell.Settings(), logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	printer := newEventPrinter(handler)
	g.Go(func() error {
		printer.run(gctx, events)
		return nil
	})
	g.Go(func() error {
		return host.Wait(gctx)
	})
	g.Go(func() error {
		return repl(gctx, handler, in)
	})
	err = g.Wait()
	if errors.Is(err, command.ErrQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func watchConfig(ctx context.Context, cfgPath string, settings *core.Settings, logger pslog.Logger) {
	if cfgPath == "" {
		path, err := appconfig.DefaultConfigPath()
		if err != nil {
			return
		}
		cfgPath = path
	}
	err := appconfig.Watch(cfgPath, logger, func(patch schema.HostConfigPatch) {
		applyHostPatch(context.WithoutCancel(ctx), settings, patch)
	})
	if err != nil {
		logger.Debug("browse config watch disabled", "err", err)
	}
}

// applyHostPatch routes file-driven changes through the settings owner so
// the persisted preferences and the host stay in step.
func applyHostPatch(ctx context.Context, settings *core.Settings, patch schema.HostConfigPatch) {
	if patch.ContentBlocking != nil {
		settings.SetContentBlocking(ctx, *patch.ContentBlocking)
	}
	if patch.DoNotTrack != nil {
		settings.SetDoNotTrack(ctx, *patch.DoNotTrack)
	}
	if patch.DownloadPath != nil {
		settings.SetDownloadPath(ctx, *patch.DownloadPath)
	}
}

// repl reads lines until EOF, /quit or ctx ends. The reader goroutine is
// left blocked on input when repl returns mid-read.
func repl(ctx context.Context, handler *command.Handler, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()
	handler.Prompt(prompt)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				return err
			}
			return command.ErrQuit
		case line := <-lines:
			if err := handler.Handle(ctx, line); err != nil {
				if errors.Is(err, command.ErrQuit) {
					return err
				}
				handler.Print("error: " + err.Error())
			}
			handler.Prompt(prompt)
		}
	}
}

type eventPrinter struct {
	handler  *command.Handler
	renderer *format.PlainRenderer
	states   map[schema.DownloadID]schema.DownloadState
}

func newEventPrinter(handler *command.Handler) *eventPrinter {
	return &eventPrinter{
		handler:  handler,
		renderer: handler.Renderer(),
		states:   make(map[schema.DownloadID]schema.DownloadState),
	}
}

func (p *eventPrinter) run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.handler.Print(p.render(ev)...)
		}
	}
}

func (p *eventPrinter) render(ev eventbus.Event) []string {
	switch ev.Type {
	case eventbus.EventSession:
		return p.renderer.FormatSessionEvent(ev.Session)
	case eventbus.EventPage:
		return p.renderer.FormatPageState(ev.Page.State)
	case eventbus.EventDownloads:
		return p.downloadChanges(ev.Downloads.Records)
	default:
		return nil
	}
}

// downloadChanges reports only records that started or changed state;
// byte progress stays quiet and is visible through /downloads.
func (p *eventPrinter) downloadChanges(records []schema.DownloadRecord) []string {
	var lines []string
	seen := make(map[schema.DownloadID]struct{}, len(records))
	for _, record := range records {
		seen[record.ID] = struct{}{}
		prev, ok := p.states[record.ID]
		p.states[record.ID] = record.State
		if ok && prev == record.State {
			continue
		}
		lines = append(lines, fmt.Sprintf("download %s: %s", strings.ToLower(string(record.State)), record.Filename))
	}
	for id := range p.states {
		if _, ok := seen[id]; !ok {
			delete(p.states, id)
		}
	}
	return lines
}
