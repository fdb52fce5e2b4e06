package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/rotisserie/eris"
)

// Renderer writes responses as JSON, Markdown or a console summary
type Renderer struct {
	pretty bool
}

// NewRenderer creates a renderer
func NewRenderer(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// JSON encodes resp
func (r *Renderer) JSON(resp *model.Response) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if r.pretty {
		data, err = json.MarshalIndent(resp, "", "  ")
	} else {
		data, err = json.Marshal(resp)
	}
	if err != nil {
		return nil, eris.Wrap(err, "render: encode json")
	}
	return data, nil
}

// RenderJSON writes resp as JSON to path
func (r *Renderer) RenderJSON(resp *model.Response, path string) error {
	data, err := r.JSON(resp)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}
	return nil
}

// RenderMarkdown writes a human-readable report to path
func (r *Renderer) RenderMarkdown(resp *model.Response, path string) error {
	var sb strings.Builder
	writeMarkdown(&sb, resp)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return eris.Wrapf(err, "render: write %s", path)
	}
	return nil
}

// RenderSummary prints a short console summary
func (r *Renderer) RenderSummary(w io.Writer, resp *model.Response) {
	_, _ = fmt.Fprintf(w, "\n%s  (request %s)\n", resp.Molecule, resp.RequestID)
	for _, agent := range sortedAgents(resp) {
		res := resp.Results[agent]
		s := res.VerificationSummary
		status := "answered"
		if res.Abstained {
			status = "abstained: " + reasonText(res.AbstainReason)
		}
		_, _ = fmt.Fprintf(w, "  %-17s %d verified, %d partial, %d unverified, %d conflicting  [%s]\n",
			agent, s.VerifiedCount, s.PartialCount, s.UnverifiedCount, s.ConflictingCount, status)
	}

	_, _ = fmt.Fprintln(w)
	if resp.Summary.Abstained {
		_, _ = fmt.Fprintf(w, "✗ No answer: %s\n", reasonText(resp.Summary.AbstainReason))
		return
	}
	_, _ = fmt.Fprintln(w, resp.Summary.Text)
	_, _ = fmt.Fprintf(w, "\n✓ Supported claims: %s\n", strings.Join(resp.Summary.SupportedClaimIDs, ", "))
}

func writeMarkdown(sb *strings.Builder, resp *model.Response) {
	fmt.Fprintf(sb, "# %s\n\n", resp.Molecule)
	fmt.Fprintf(sb, "Request: `%s`\n\n", resp.RequestID)

	sb.WriteString("## Summary\n\n")
	if resp.Summary.Abstained {
		fmt.Fprintf(sb, "**Abstained:** %s\n\n", reasonText(resp.Summary.AbstainReason))
	} else {
		fmt.Fprintf(sb, "%s\n\n", resp.Summary.Text)
		fmt.Fprintf(sb, "Supported claims: %s\n\n", strings.Join(resp.Summary.SupportedClaimIDs, ", "))
	}

	for _, agent := range sortedAgents(resp) {
		res := resp.Results[agent]
		fmt.Fprintf(sb, "## Agent: %s\n\n", agent)
		if res.Abstained {
			fmt.Fprintf(sb, "**Abstained:** %s\n\n", reasonText(res.AbstainReason))
		}
		if len(res.Claims) == 0 {
			sb.WriteString("No claims.\n\n")
			continue
		}
		sb.WriteString("| Claim | Status | Sources | Stale |\n|---|---|---|---|\n")
		for _, c := range res.Claims {
			fmt.Fprintf(sb, "| `%s` | %s | %d | %t |\n", c.ClaimID, c.VerificationStatus, c.SupportCount, c.Stale)
		}
		sb.WriteString("\n")
		for _, src := range res.Sources {
			if src.Error != "" {
				fmt.Fprintf(sb, "- %s failed: %s\n", src.Connector, src.Error)
			}
		}
		sb.WriteString("\n")
	}
}

func sortedAgents(resp *model.Response) []string {
	agents := make([]string, 0, len(resp.Results))
	for agent := range resp.Results {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	return agents
}

func reasonText(r *model.AbstainReason) string {
	if r == nil {
		return "unspecified"
	}
	return string(*r)
}
