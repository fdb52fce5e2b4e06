package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/ppiankov/truthgate/internal/pipeline"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	query       string
	framing     string
	realTime    bool
	agents      []string
	critical    []string
	outJSON     string
	outMD       string
	noCache     bool
	noGate      bool
	llmProvider string
	llmModel    string
)

var researchCmd = &cobra.Command{
	Use:   "research <molecule>",
	Short: "Research one molecule and print the gated answer",
	Long: `Research queries the evidence sources for one molecule, evaluates every
record, and returns a narrative in which each sentence cites a supported
claim. When the evidence is missing, untrusted, stale or contradictory the
answer abstains with the reason.

Example:
  truthgate research examplinib
  truthgate research examplinib --query "Is examplinib FDA approved?" --json out.json
  truthgate research examplinib --agents regulatory --framing exploratory
  truthgate research examplinib --llm-provider openai --llm-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

func init() {
	rootCmd.AddCommand(researchCmd)
	addRequestFlags(researchCmd)

	researchCmd.Flags().StringVar(&query, "query", "", "research question (defaults to the molecule name)")
	researchCmd.Flags().StringVar(&outJSON, "json", "", "write the JSON response to this path")
	researchCmd.Flags().StringVar(&outMD, "md", "", "write a Markdown report to this path")
}

// addRequestFlags registers the flags shared by research and batch
func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&framing, "framing", "", "definitive or exploratory (inferred from the query when empty)")
	cmd.Flags().BoolVar(&realTime, "real-time", false, "treat every claim as real-time")
	cmd.Flags().StringSliceVar(&agents, "agents", nil, "agents to run (clinical, regulatory, web_intelligence)")
	cmd.Flags().StringSliceVar(&critical, "critical", nil, "claim ids to treat as critical")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the connector cache")
	cmd.Flags().BoolVar(&noGate, "no-gate", false, "bypass evaluation and gating (legacy output)")
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "", "generator (openai, anthropic, ollama, extractive)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "generator model name")
}

// applyRequestFlags folds command flags into the loaded config
func applyRequestFlags(c *model.Config) error {
	if noCache {
		c.Cache.Enabled = false
	}
	if noGate {
		c.Gate.Enabled = false
	}
	if llmProvider != "" && !strings.EqualFold(llmProvider, c.LLM.Provider) {
		// A key configured for another provider does not carry over
		c.LLM.Provider = llmProvider
		c.LLM.APIKey = ""
		applyEnvKeys(c)
	}
	if llmModel != "" {
		c.LLM.Model = llmModel
	}
	switch strings.ToLower(framing) {
	case "", model.FramingDefinitive, model.FramingExploratory:
	default:
		return eris.Errorf("--framing must be %s or %s", model.FramingDefinitive, model.FramingExploratory)
	}
	return checkLLMKey(c)
}

func baseRequest() model.Request {
	return model.Request{
		Query:          query,
		Framing:        strings.ToLower(framing),
		RealTime:       realTime,
		CriticalClaims: critical,
		Agents:         agents,
	}
}

func runResearch(cmd *cobra.Command, args []string) error {
	if err := applyRequestFlags(cfg); err != nil {
		return err
	}

	p, err := pipeline.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	req := baseRequest()
	req.Molecule = strings.TrimSpace(args[0])
	if req.Molecule == "" {
		return eris.New("molecule is required")
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Researching: %s\n", req.Molecule)
		fmt.Fprintf(os.Stderr, "Budget: %v\n\n", cfg.Pipeline.RequestBudget)
	}

	resp := p.Run(context.Background(), req)

	renderer := pipeline.NewRenderer(cfg.Output.Pretty)
	if outJSON != "" {
		if err := renderer.RenderJSON(resp, outJSON); err != nil {
			return err
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(resp, outMD); err != nil {
			return err
		}
	}
	if outJSON == "" && outMD == "" {
		data, err := renderer.JSON(resp)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}
	renderer.RenderSummary(cmd.ErrOrStderr(), resp)
	return nil
}
