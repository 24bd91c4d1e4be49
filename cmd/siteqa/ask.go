package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	qauc "github.com/kailas-cloud/siteqa/internal/usecase/qa"
)

const cliSession = "cli"

type askOptions struct {
	url         string
	question    string
	files       []string
	depth       int
	maxPages    int
	scopePrefix string
	topK        int
	temperature float64
}

func askCmd(env *string) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Index a site and/or local files, then answer one question",
		Example: `  siteqa ask --url https://www.uni-example.de/ --question "What is the application deadline?"
  siteqa ask --file handbook.pdf --question "How many ECTS is the thesis?"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.url == "" && len(opts.files) == 0 {
				return errors.New("either --url or --file is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *env)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("temperature") {
				t := opts.temperature
				return runAsk(ctx, a, opts, &t, cmd.OutOrStdout())
			}
			return runAsk(ctx, a, opts, nil, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.url, "url", "", "site to crawl before answering")
	f.StringVarP(&opts.question, "question", "q", "", "question to answer")
	f.StringArrayVar(&opts.files, "file", nil, "local document to index (repeatable)")
	f.IntVar(&opts.depth, "depth", 0, "crawl depth (default from config)")
	f.IntVar(&opts.maxPages, "max-pages", 0, "crawl page limit (default from config)")
	f.StringVar(&opts.scopePrefix, "scope", "", "URL prefix the crawl stays within (default scheme://host)")
	f.IntVar(&opts.topK, "top-k", 0, "chunks passed to the model")
	f.Float64Var(&opts.temperature, "temperature", 0, "sampling temperature (default from config)")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func runAsk(ctx context.Context, a *app, opts askOptions, temperature *float64, out io.Writer) error {
	if len(opts.files) > 0 {
		if err := uploadFiles(ctx, a, opts.files, out); err != nil {
			return err
		}
	}

	res, err := a.qa.Ask(ctx, cliSession, qauc.AskRequest{
		Question:    opts.question,
		TopK:        opts.topK,
		Temperature: temperature,
		StartURL:    opts.url,
		Depth:       opts.depth,
		MaxPages:    opts.maxPages,
		ScopePrefix: opts.scopePrefix,
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(out, res.Answer)
	if len(res.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, s := range res.Sources {
			fmt.Fprintln(out, "  "+s)
		}
	}
	return nil
}

func uploadFiles(ctx context.Context, a *app, paths []string, out io.Writer) error {
	files := make([]qauc.UploadFile, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(filepath.Clean(p))
		if err != nil {
			return fmt.Errorf("open %s: %w", p, err)
		}
		defer f.Close()
		files = append(files, qauc.UploadFile{Name: filepath.Base(p), Content: f})
	}

	res, err := a.qa.Upload(ctx, cliSession, files)
	for _, fr := range res.Files {
		if !fr.OK {
			a.logger.Warn("File skipped", zap.String("file", fr.Name), zap.String("error", fr.Error))
			fmt.Fprintf(out, "skipped %s: %s\n", fr.Name, fr.Error)
		}
	}
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	a.logger.Info("Files indexed", zap.Int("chunks", res.Chunks), zap.Int("files", len(files)))
	return nil
}
