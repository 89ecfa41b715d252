// Package main provides the tongue-cli tool: run photos through the
// analysis client, parse saved LLM reports and prepare uploads.
//
// Run with: go run ./cmd/cli analyze --transport mock photo.jpg
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fleveque/tongue-service/internal/analyzer"
	"github.com/fleveque/tongue-service/internal/config"
	"github.com/fleveque/tongue-service/internal/imaging"
	"github.com/fleveque/tongue-service/internal/parser"
	"github.com/fleveque/tongue-service/internal/presenter"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tongue-cli",
		Short:        "Tongue analysis CLI tools",
		SilenceUsage: true,
	}

	root.AddCommand(analyzeCmd(), parseCmd(), compressCmd())
	return root
}

type analyzeOptions struct {
	transport string
	provider  string
	parallel  int
	output    string
}

func analyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze PHOTO...",
		Short: "Analyze tongue photos with the analysis client",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport: http, direct, mock (default from config)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Provider for --transport direct: anthropic, openai")
	cmd.Flags().IntVar(&opts.parallel, "parallel", 1, "Photos analyzed concurrently")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "json", "Output format: json, yaml")
	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, opts analyzeOptions, photos []string) error {
	enc, err := newEncoder(opts.output, out)
	if err != nil {
		return err
	}

	cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if opts.transport == "" {
		opts.transport = cfg.Client.Transport
	}
	if opts.provider == "" {
		opts.provider = cfg.Client.Provider
	}
	transport, err := newTransport(cfg, opts, logger)
	if err != nil {
		return err
	}
	client := analyzer.NewClient(transport, cfg.Image.Options(), logger)
	logger.Info("analyzing photos",
		zap.String("transport", client.Transport().Name()),
		zap.Int("photos", len(photos)),
		zap.Int("parallel", opts.parallel),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results := make([]photoResult, len(photos))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.parallel, 1))
	for i, path := range photos {
		g.Go(func() error {
			results[i] = analyzePhoto(ctx, client, path, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d analyses failed", failed, len(photos))
	}
	return nil
}

// analyzePhoto runs one photo through its own session, logging every state
// the store goes through.
func analyzePhoto(ctx context.Context, client *analyzer.Client, path string, logger *zap.Logger) photoResult {
	res := photoResult{Photo: path}

	photo, err := os.ReadFile(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	store := presenter.NewStore()
	unsubscribe := store.Subscribe(func(s presenter.State) {
		logger.Debug("analysis state",
			zap.String("photo", path),
			zap.Bool("analyzing", s.IsAnalyzing),
			zap.Bool("has_result", s.CurrentResult != nil),
		)
	})
	defer unsubscribe()

	result := presenter.NewSession(store, client, logger).Start(ctx, photo).Wait()
	res.RequestID = result.RequestID
	res.Outcome = result.Outcome.String()
	if result.Err != nil {
		res.Error = result.Err.Error()
	}
	res.Result = result.Record
	return res
}

func newTransport(cfg *config.Config, opts analyzeOptions, logger *zap.Logger) (analyzer.Transport, error) {
	switch opts.transport {
	case "http":
		return analyzer.NewHTTPTransport(cfg.Client.BaseURL, cfg.Client.APIKey, cfg.Client.Timeout, logger), nil
	case "direct":
		switch opts.provider {
		case "anthropic":
			return analyzer.NewDirectTransport("anthropic", cfg.LLM.Anthropic.APIKey, cfg.LLM.Anthropic.Model, cfg.LLM.MaxTokens, logger), nil
		case "openai":
			return analyzer.NewDirectTransport("openai", cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.Model, cfg.LLM.MaxTokens, logger), nil
		default:
			return nil, fmt.Errorf("unknown provider: %s", opts.provider)
		}
	case "mock":
		return analyzer.NewMockTransport(analyzer.SampleRecord()), nil
	default:
		return nil, fmt.Errorf("unknown transport: %s", opts.transport)
	}
}

func parseCmd() *cobra.Command {
	var mode, output string

	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a saved LLM report (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := newEncoder(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			text, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			switch mode {
			case "enhanced":
				return enc.Encode(parser.ParseEnhanced(text))
			case "legacy":
				return enc.Encode(parser.ParseLegacy(text))
			default:
				return fmt.Errorf("unknown mode: %s", mode)
			}
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "enhanced", "Parser: enhanced, legacy")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json, yaml")
	return cmd
}

func readInput(path string, stdin io.Reader) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func compressCmd() *cobra.Command {
	var maxDimension, quality int

	cmd := &cobra.Command{
		Use:   "compress PHOTO",
		Short: "Write the upload-ready JPEG next to the photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, info, size, err := compressFile(args[0], imaging.Options{MaxDimension: maxDimension, Quality: quality})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%dx%d, %d bytes)\n", dst, info.Width, info.Height, size)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxDimension, "max-dimension", imaging.DefaultMaxDimension, "Longest edge in pixels")
	cmd.Flags().IntVar(&quality, "quality", imaging.DefaultQuality, "JPEG quality (1-100)")
	return cmd
}

// compressFile writes photo.png as photo.upload.jpg and returns the new
// path, its dimensions and its size in bytes.
func compressFile(path string, opts imaging.Options) (string, imaging.Info, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", imaging.Info{}, 0, fmt.Errorf("reading photo: %w", err)
	}

	out, err := imaging.Compress(data, opts)
	if err != nil {
		return "", imaging.Info{}, 0, fmt.Errorf("compressing %s: %w", path, err)
	}
	info, err := imaging.Inspect(out)
	if err != nil {
		return "", imaging.Info{}, 0, err
	}

	dst := strings.TrimSuffix(path, filepath.Ext(path)) + ".upload.jpg"
	if err := os.WriteFile(dst, out, 0644); err != nil {
		return "", imaging.Info{}, 0, fmt.Errorf("writing %s: %w", dst, err)
	}
	return dst, info, len(out), nil
}
