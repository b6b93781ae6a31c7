package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_ytsaver/internal/engine"
	"github.com/anatolykoptev/go_ytsaver/internal/engine/delivery"
	"github.com/anatolykoptev/go_ytsaver/internal/engine/sources"
	"github.com/anatolykoptev/go_ytsaver/internal/prompt"
	"github.com/anatolykoptev/go_ytsaver/internal/ytserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

type options struct {
	output  string
	useAPI  bool
	config  string
	url     string
	subject string
	to      string
	verbose bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "ytsaver",
		Short:         "Save YouTube transcripts and deliver LLM summaries",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd.ErrOrStderr(), o.verbose)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSave(cmd.Context(), o, cmd.OutOrStdout())
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&o.config, "config", env.Str("YTSAVER_CONFIG", "config/config.env"), "path to the key=value config file")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")

	lf := cmd.Flags()
	lf.StringVarP(&o.output, "output", "o", delivery.OutputConsole, "delivery method: console, mail or ses")
	lf.BoolVar(&o.useAPI, "api", false, "summarize with the LLM API instead of copying the transcript to the clipboard")
	lf.StringVar(&o.url, "url", "", "video or playlist URL (prompted when empty)")
	lf.StringVar(&o.subject, "subject", "", "summary subject (defaults to the title)")
	lf.StringVar(&o.to, "to", "", "recipient address for mail and ses output")

	cmd.AddCommand(newServeCmd(o), newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ytsaver", version)
		},
	}
}

func newServeCmd(o *options) *cobra.Command {
	port := env.Str("MCP_PORT", "8892")
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), o, port)
		},
	}
	cmd.Flags().StringVar(&port, "port", port, "MCP listen port")
	return cmd
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func runSave(ctx context.Context, o *options, stdout io.Writer) error {
	switch o.output {
	case delivery.OutputConsole, delivery.OutputMail, delivery.OutputSES:
	default:
		return fmt.Errorf("unknown output %q (valid: console, mail, ses)", o.output)
	}

	cfg, err := engine.LoadConfig(o.config, engine.Requirements{Summarize: o.useAPI, Output: o.output})
	if err != nil {
		return err
	}

	pr := prompt.New(os.Stdin, os.Stderr)
	req := engine.Request{URL: o.url, Subject: o.subject, To: o.to, UseAPI: o.useAPI}
	if req.URL == "" {
		if req.URL, err = pr.Ask(prompt.Field{Label: "YouTube URL", Placeholder: "https://www.youtube.com/watch?v=...", Required: true}); err != nil {
			return err
		}
	}
	if req.Subject == "" {
		if req.Subject, err = pr.Ask(prompt.Field{Label: "Subject", Placeholder: "blank for the video or playlist title"}); err != nil {
			return err
		}
	}
	if req.To == "" && needsRecipient(o.output) {
		if req.To, err = pr.Ask(prompt.Field{Label: "Send to", Placeholder: "name@example.com", Required: true}); err != nil {
			return err
		}
	}

	dispatcher, err := delivery.New(ctx, o.output, cfg, stdout)
	if err != nil {
		return err
	}
	p := newPipeline(cfg, o.useAPI)
	p.Dispatcher = dispatcher

	res, err := p.Run(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("done",
		slog.String("artifact", res.ArtifactPath),
		slog.Int("videos", res.Videos),
		slog.Int("skipped", len(res.Skipped)),
		slog.Bool("delivered", res.Delivered),
	)
	return nil
}

// needsRecipient reports whether output sends email. A summary cached by an
// earlier --api run is delivered even when --api is not set, so the address is
// asked for regardless of it.
func needsRecipient(output string) bool {
	return output == delivery.OutputMail || output == delivery.OutputSES
}

func runServe(ctx context.Context, o *options, port string) error {
	cfg, err := engine.LoadConfig(o.config, engine.Requirements{})
	if err != nil {
		return err
	}
	p := newPipeline(cfg, cfg.LLMAPIKey != "")

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_ytsaver",
		Version: version,
	}, nil)
	ytserver.RegisterTools(server, p)
	slog.Info("starting go_ytsaver",
		slog.String("port", port),
		slog.Bool("summaries", p.Summarizer != nil),
	)

	return mcpserver.Run(server, mcpserver.Config{
		Name:         "go_ytsaver",
		Version:      version,
		Port:         port,
		WriteTimeout: 600 * time.Second,
		Metrics:      engine.FormatMetrics,
	})
}

func newPipeline(cfg *engine.Config, useAPI bool) *engine.Pipeline {
	client := sources.NewClient(cfg)
	p := &engine.Pipeline{
		Config:      cfg,
		Resolve:     sources.Resolve,
		Catalog:     sources.NewCatalog(client, cfg),
		Transcripts: sources.NewTranscripts(client, cfg.TranscriptLangs, sources.NewCommandFallback(cfg.TranscriptFallbackCmd)),
		Clipboard:   delivery.SystemClipboard{},
	}
	if useAPI {
		p.Summarizer = engine.NewLLMSummarizer(cfg)
	}
	return p
}
