package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/ppiankov/truthgate/internal/normalize"
	"github.com/ppiankov/truthgate/internal/pipeline"
	"github.com/ppiankov/truthgate/internal/worker"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Research many molecules from a file in parallel",
	Long: `Batch reads one molecule per line, optionally followed by "|" and a
question, and researches them with a bounded worker pool. Each answer is
written to <output-dir>/<molecule>.json and .md.

Example:
  truthgate batch molecules.txt
  truthgate batch molecules.txt --concurrency 8 --output-dir ./answers`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addRequestFlags(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent requests (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./truthgate-answers", "output directory")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for the batch")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	if err := applyRequestFlags(cfg); err != nil {
		return err
	}
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return eris.Wrap(err, "create output directory")
	}

	p, err := pipeline.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "Input file:  %s\n", file)
	fmt.Fprintf(errOut, "Workers:     %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(errOut, "Output dir:  %s\n\n", outputDir)

	processor := worker.NewBatchProcessor(p, cfg.Concurrency.Workers)
	results, err := processor.ProcessFile(ctx, file, baseRequest())
	if err != nil {
		return err
	}

	renderer := pipeline.NewRenderer(cfg.Output.Pretty)
	answered, abstained, failed := 0, 0, 0
	for _, res := range results {
		if res.Error != nil {
			failed++
			fmt.Fprintf(errOut, "✗ %s: %v\n", res.Request.Molecule, res.Error)
			continue
		}

		slug := reportSlug(res.Request)
		if err := renderer.RenderJSON(res.Response, filepath.Join(outputDir, slug+".json")); err != nil {
			failed++
			fmt.Fprintf(errOut, "✗ %s: %v\n", res.Request.Molecule, err)
			continue
		}
		if err := renderer.RenderMarkdown(res.Response, filepath.Join(outputDir, slug+".md")); err != nil {
			failed++
			fmt.Fprintf(errOut, "✗ %s: %v\n", res.Request.Molecule, err)
			continue
		}

		if s := res.Response.Summary; s.Abstained {
			abstained++
			reason := model.ReasonUnsupportedNarrative
			if s.AbstainReason != nil {
				reason = *s.AbstainReason
			}
			fmt.Fprintf(errOut, "∅ %s: abstained (%s)\n", res.Request.Molecule, reason)
		} else {
			answered++
			fmt.Fprintf(errOut, "✓ %s: %d supported claims\n", res.Request.Molecule, len(s.SupportedClaimIDs))
		}
	}

	fmt.Fprintf(errOut, "\nTotal: %d  Answered: %d  Abstained: %d  Failed: %d\n", len(results), answered, abstained, failed)
	return nil
}

// reportSlug names the report files of req
func reportSlug(req model.Request) string {
	slug := normalize.CanonicalClaimID(req.Molecule)
	if req.Query != "" {
		slug += "--" + normalize.CanonicalClaimID(req.Query)
	}
	slug = strings.Trim(slug, ".")
	if slug == "" {
		slug = "request"
	}
	if len(slug) > 100 {
		slug = slug[:100]
	}
	return slug
}
