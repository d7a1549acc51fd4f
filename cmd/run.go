// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BilliamsFluster/stockpilot/internal/config"
	"github.com/BilliamsFluster/stockpilot/internal/observability"
	"github.com/BilliamsFluster/stockpilot/pkg/dom/cdp"
	"github.com/BilliamsFluster/stockpilot/pkg/executor"
	"github.com/BilliamsFluster/stockpilot/pkg/inference"
	"github.com/BilliamsFluster/stockpilot/pkg/voice"
)

// newRunCmd creates the `run` command: open the dashboard in a browser tab
// and drive it with the voice loop until interrupted.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run <dashboard-url>",
		Short: "Starts the voice agent against the dashboard at the given URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			cfg := appConfig

			target := args[0]
			if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
				target = "https://" + target
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runAgent(ctx, cfg, target, logger)
		},
	}
	return runCmd
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}

func runAgent(ctx context.Context, cfg *config.Config, target string, logger *zap.Logger) error {
	// 1. Browser session.
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browserExecOptions(cfg.Browser)...)
	defer allocCancel()

	session := cdp.NewSession(allocCtx, logger, cdp.Options{
		PostLoadWait:      cfg.Browser.PostLoadWait,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
	})
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if err := session.Close(closeCtx); err != nil {
			logger.Warn("Browser session close failed", zap.Error(err))
		}
	}()

	if err := session.Navigate(ctx, target); err != nil {
		return fmt.Errorf("failed to open dashboard: %w", err)
	}
	logger.Info("Dashboard opened", zap.String("url", target))

	// 2. Executor, preferring the page's in-app router when it exposes one.
	bridge := cdp.NewBridge(session, logger)
	exec := executor.New(session, logger,
		executor.WithSoftNav(bridge.SoftNavigate),
		executor.WithWaitTimeout(cfg.Executor.WaitTimeout),
		executor.WithNavProbeDelay(cfg.Executor.NavProbeDelay))

	if err := bridge.Attach(exec); err != nil {
		return fmt.Errorf("failed to attach page bridge: %w", err)
	}
	defer func() {
		if err := bridge.Detach(); err != nil {
			logger.Warn("Page bridge detach failed", zap.Error(err))
		}
	}()

	// 3. Voice pipeline.
	recognizer, err := voice.NewWhisperRecognizer(
		voice.NewHTTPSource(cfg.Voice.CaptureURL),
		cfg.Voice.Transcription.APIKey,
		cfg.Voice.Transcription.Model)
	if err != nil {
		return fmt.Errorf("failed to build recognizer: %w", err)
	}

	thinker, err := inference.NewClient(inference.Config{
		APIKey:            cfg.Inference.APIKey,
		Model:             cfg.Inference.Model,
		Endpoint:          cfg.Inference.Endpoint,
		Timeout:           cfg.Inference.Timeout,
		Temperature:       cfg.Inference.Temperature,
		MaxTokens:         cfg.Inference.MaxTokens,
		RequestsPerMinute: cfg.Inference.RequestsPerMinute,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to build inference client: %w", err)
	}

	player := voice.NewPlayer(cfg.Voice.SynthEndpoint, func() (voice.Sink, error) {
		return voice.NewCommandSink(cfg.Voice.PlaybackRate, cfg.Voice.PlaybackCommand)
	}, logger)

	loopOpts := []voice.LoopOption{
		voice.WithPolicy(voice.Policy{Short: cfg.Voice.RetryShort, Long: cfg.Voice.RetryLong}),
		voice.WithVoice(cfg.Voice.Voice),
	}
	if cfg.Voice.SessionStartURL != "" || cfg.Voice.SessionStopURL != "" {
		loopOpts = append(loopOpts,
			voice.WithNotifier(voice.NewHTTPNotifier(cfg.Voice.SessionStartURL, cfg.Voice.SessionStopURL)))
	}

	loop := voice.NewLoop(recognizer, thinker, player, exec, logger, loopOpts...)

	// 4. Run until interrupted; the stop handle is the only way out.
	stop := loop.Start(ctx)
	logger.Info("Voice loop armed; press Ctrl-C to stop")

	<-ctx.Done()
	logger.Info("Shutting down")
	stop()
	return nil
}

// browserExecOptions translates the browser config into chromedp allocator
// options.
func browserExecOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		// The default options force headless; the agent usually drives a
		// visible window so the user can watch it work.
		chromedp.Flag("headless", cfg.Headless),
	)

	if cfg.DisableCache {
		opts = append(opts, chromedp.Flag("disable-application-cache", true))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}

	for _, arg := range cfg.Args {
		if !strings.Contains(arg, "=") {
			if !strings.HasPrefix(arg, "--") {
				arg = "--" + arg
			}
			opts = append(opts, chromedp.Flag(strings.TrimPrefix(arg, "--"), true))
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(arg, "--"), "=", 2)
		opts = append(opts, chromedp.Flag(parts[0], parts[1]))
	}
	return opts
}
