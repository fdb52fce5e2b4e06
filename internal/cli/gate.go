package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/truthgate/internal/gate"
	"github.com/ppiankov/truthgate/internal/model"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	narrativeFile string
	claimsFile    string
	included      []string
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Replay the truth gate over a narrative and claim table",
	Long: `Gate checks a narrative offline. Each sentence must cite claims with
[claim:<id>] tags, and every cited claim must be verified or partially
verified in the claim table. Rejected sentences are listed with the reason.

The claim table is either a JSON array of claims or a saved research
response, whose agent claim tables are merged.

Example:
  truthgate gate --narrative answer.txt --claims out.json
  truthgate gate --narrative answer.txt --claims claims.json --included examplinib-approval-status`,
	Args: cobra.NoArgs,
	RunE: runGate,
}

func init() {
	rootCmd.AddCommand(gateCmd)

	gateCmd.Flags().StringVar(&narrativeFile, "narrative", "", "file holding the narrative text (- for stdin)")
	gateCmd.Flags().StringVar(&claimsFile, "claims", "", "JSON claim table or research response")
	gateCmd.Flags().StringSliceVar(&included, "included", nil, "claim ids the generator saw (default: all)")
	_ = gateCmd.MarkFlagRequired("narrative")
	_ = gateCmd.MarkFlagRequired("claims")
}

func runGate(cmd *cobra.Command, args []string) error {
	var (
		narrative []byte
		err       error
	)
	if narrativeFile == "-" {
		narrative, err = io.ReadAll(cmd.InOrStdin())
	} else {
		narrative, err = os.ReadFile(narrativeFile)
	}
	if err != nil {
		return eris.Wrap(err, "read narrative")
	}

	data, err := os.ReadFile(claimsFile)
	if err != nil {
		return eris.Wrap(err, "read claims")
	}
	claims, err := gate.ParseClaims(data)
	if err != nil {
		return err
	}

	res := gate.Replay{Narrative: string(narrative), Claims: claims, Included: included}.Run()

	out := struct {
		Text              string                  `json:"text"`
		SupportedClaimIDs []string                `json:"supported_claim_ids"`
		Abstained         bool                    `json:"abstained"`
		Gate              []model.SentenceVerdict `json:"gate"`
	}{res.Text, res.SupportedClaimIDs, res.Abstained, res.Verdicts}
	if out.SupportedClaimIDs == nil {
		out.SupportedClaimIDs = []string{}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return eris.Wrap(err, "encode gate result")
	}

	errOut := cmd.ErrOrStderr()
	for _, v := range res.Verdicts {
		if v.State == model.SentenceRejected {
			_, _ = fmt.Fprintf(errOut, "✗ %s\n", v.Reason)
		}
	}
	if res.Abstained {
		_, _ = fmt.Fprintf(errOut, "✗ No sentence survived: %s\n", model.ReasonUnsupportedNarrative)
	}
	return nil
}
