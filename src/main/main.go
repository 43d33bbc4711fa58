package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"select-translate/src/clipboard"
	"select-translate/src/config"
	"select-translate/src/eventloop"
	"select-translate/src/history"
	"select-translate/src/logutil"
	"select-translate/src/notification"
	"select-translate/src/singleinstance"
	"select-translate/src/translate"
	"select-translate/src/tray"
)

// normalizeFlagDashes maps GNU-style --run-once / --run-once-std to Go's
// single-dash form.
func normalizeFlagDashes() {
	for i := 1; i < len(os.Args); i++ {
		if strings.HasPrefix(os.Args[i], "--run-once") {
			os.Args[i] = os.Args[i][1:]
		}
	}
}

func main() {
	// Keep the main goroutine on one OS thread; the systray and any window
	// message handling live here.
	runtime.LockOSThread()

	runOnce := flag.Bool("run-once", false, "Translate the clipboard text once onto the clipboard, then exit")
	runOnceStd := flag.Bool("run-once-std", false, "Translate the clipboard text once to stdout, then exit")
	normalizeFlagDashes()
	flag.Parse()

	if *runOnce || *runOnceStd {
		runTranslateOnce(*runOnceStd)
		return
	}

	enableDPIAwareness()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logutil.Setup(cfg.EnableFileLogging)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Pre-flight: claim the resident port before doing anything expensive,
	// then release it for the event loop to re-bind.
	if port, found := singleinstance.DetectResidentPort(context.Background()); found {
		fmt.Printf("already running on port %d\n", port)
		os.Exit(1)
	}
	startPort, _ := singleinstance.PortRange()
	lis, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", startPort))
	if err != nil {
		fmt.Printf("port %d is taken by another process\n", startPort)
		os.Exit(1)
	}
	_ = lis.Close()

	gw := newGateway(cfg)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = gw.Ping(pingCtx)
	pingCancel()
	if err != nil {
		notification.ShowBlockingError("Translation service unavailable",
			fmt.Sprintf("Startup check failed: %v\n\nPlease verify your API key and network connectivity.", err))
		os.Exit(1)
	}
	log.Printf("Translation ping succeeded (provider %s, key %s)", cfg.Provider, logutil.RedactKey(cfg.APIKey))

	if err := clipboard.Init(); err != nil {
		log.Fatalf("Failed to initialize clipboard: %v", err)
	}

	hist := openHistory(cfg)
	if hist != nil {
		defer hist.Close()
	}

	log.Printf("Select Translate initialized")
	log.Printf("Hotkey: %s, target language: %s (auto-detect %v)", cfg.Hotkey, cfg.TargetLang, cfg.AutoDetect)

	loop := eventloop.New(cfg, gw, hist)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := loop.StartHotkey(cfg.Hotkey); err != nil {
		log.Fatalf("Failed to register hotkey %q: %v", cfg.Hotkey, err)
	}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
		tray.Quit()
	}()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	// Blocks until Quit; must run on the locked main thread.
	tray.Run(tray.Handlers{
		OnTranslate: loop.Trigger,
		OnStats:     loop.ShowStats,
		OnQuit:      cancel,
	})

	cancel()
	select {
	case err := <-loopDone:
		if err != nil && err != context.Canceled {
			log.Printf("event loop stopped: %v", err)
		}
	case <-time.After(2 * time.Second):
		log.Printf("event loop did not stop in time")
	}
}

func newGateway(cfg *config.Config) *translate.Gateway {
	return translate.New(translate.Config{
		Provider:   cfg.Provider,
		Endpoint:   cfg.Endpoint,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		TargetLang: cfg.TargetLang,
		SourceLang: cfg.SourceLang,
		AutoDetect: cfg.AutoDetect,
	})
}

func openHistory(cfg *config.Config) *history.DB {
	if !cfg.HistoryEnabled {
		return nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		log.Printf("History disabled: no user config dir: %v", err)
		return nil
	}
	dir := filepath.Join(base, "select-translate")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("History disabled: %v", err)
		return nil
	}
	hist, err := history.Open(dir)
	if err != nil {
		log.Printf("History disabled: %v", err)
		return nil
	}
	return hist
}

// runTranslateOnce translates the current clipboard text and exits. Prefers
// delegating to a resident so the translation uses its configuration and
// rate limits; falls back to a standalone request.
func runTranslateOnce(toStdout bool) {
	// Load config early so SINGLEINSTANCE_PORT_* apply to the scan.
	cfg, cfgErr := config.Load()
	if cfgErr == nil {
		logutil.Setup(cfg.EnableFileLogging)
	}

	mode := singleinstance.ModeClipboard
	if toStdout {
		mode = singleinstance.ModeStdout
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	delegated, text, err := singleinstance.NewClient().TryRunOnce(ctx, mode)
	if delegated {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Translation failed: %v\n", err)
			os.Exit(1)
		}
		if toStdout {
			fmt.Print(text)
		}
		return
	}
	if err != nil {
		log.Printf("Delegation error: %v; falling back to standalone", err)
	}

	// Standalone path.
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", cfgErr)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := clipboard.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize clipboard: %v\n", err)
		os.Exit(1)
	}
	med := clipboard.NewMediator(nil)
	if err := med.Acquire(); err != nil {
		fmt.Fprintf(os.Stderr, "Clipboard is busy: %v\n", err)
		os.Exit(1)
	}
	defer med.Release()

	source, ok := med.ReadText()
	if !ok || source == "" {
		fmt.Fprintln(os.Stderr, "Clipboard has no text to translate")
		os.Exit(1)
	}

	gw := newGateway(cfg)
	tctx, tcancel := context.WithTimeout(ctx, cfg.TranslateDeadline)
	defer tcancel()
	translated, err := gw.Translate(tctx, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Translation failed: %v\n", err)
		os.Exit(1)
	}

	if toStdout {
		fmt.Print(translated)
		return
	}
	if err := med.Write(translated); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write clipboard: %v\n", err)
		os.Exit(1)
	}
}
