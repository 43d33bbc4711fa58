// translate-tool is a headless companion to the resident app: it translates
// UTF-8 text from a file or stdin using the same configuration and provider
// gateway, without touching the clipboard or injecting input.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"select-translate/src/config"
	"select-translate/src/translate"
)

type cliOptions struct {
	filePath   string
	targetLang string
	jsonOutput bool
	verbose    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"translate-tool"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "translate-tool",
		Short:         "Translate UTF-8 text input",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to text file (use '-' for stdin)")
	cmd.Flags().StringVar(&opts.targetLang, "target", "", "Target language code (overrides TARGET_LANG)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output result as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runWithOptions(opts cliOptions) error {
	// Configure logging before any other operations; plain output must stay
	// pipeable.
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.targetLang != "" {
		cfg.TargetLang = strings.ToLower(opts.targetLang)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if opts.verbose {
		fmt.Fprintf(os.Stderr, "[verbose] provider=%s target=%s auto-detect=%v\n",
			cfg.Provider, cfg.TargetLang, cfg.AutoDetect)
	}

	source, err := readInput(opts.filePath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("input is empty")
	}
	if len(source) > cfg.MaxSelectionBytes {
		return fmt.Errorf("input is %d bytes, cap %d", len(source), cfg.MaxSelectionBytes)
	}

	gw := translate.New(translate.Config{
		Provider:   cfg.Provider,
		Endpoint:   cfg.Endpoint,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		TargetLang: cfg.TargetLang,
		SourceLang: cfg.SourceLang,
		AutoDetect: cfg.AutoDetect,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TranslateDeadline)
	defer cancel()

	start := time.Now()
	translated, err := gw.Translate(ctx, source)
	if err != nil {
		return fmt.Errorf("translation failed: %w", err)
	}
	elapsed := time.Since(start)

	if opts.jsonOutput {
		out := struct {
			Text       string `json:"text"`
			TargetLang string `json:"target_lang"`
			Provider   string `json:"provider"`
			ElapsedMs  int64  `json:"elapsed_ms"`
		}{
			Text:       translated,
			TargetLang: gw.TargetLang(source),
			Provider:   cfg.Provider,
			ElapsedMs:  elapsed.Milliseconds(),
		}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(out)
	}

	// Print (not Println) so output matches the translation exactly.
	fmt.Print(translated)
	return nil
}

func readInput(filePath string) (string, error) {
	if filePath == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	return string(data), nil
}

// normalizeLegacyArgs maps single-dash long flags to cobra's double-dash
// form, for callers used to stdlib flag syntax.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	long := []string{"file", "target", "json", "verbose"}
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range long {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}
