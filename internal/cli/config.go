package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const configHierarchy = `Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (TRUTHGATE_*, e.g. TRUTHGATE_GATE_ENABLED=false)
  3. Config file (~/.truthgate/config.yaml or --config)
  4. Built-in defaults`

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage truthgate configuration",
	Long:  "Manage truthgate configuration files and settings.\n\n" + configHierarchy,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		shown.LLM.APIKey = redact(shown.LLM.APIKey)
		shown.Connectors.FDA.APIKey = redact(shown.Connectors.FDA.APIKey)
		shown.Connectors.PubMed.APIKey = redact(shown.Connectors.PubMed.APIKey)

		data, err := yaml.Marshal(&shown)
		if err != nil {
			return eris.Wrap(err, "encode config")
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, string(data))
		_, _ = fmt.Fprint(out, commented(configHierarchy))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  `Create ~/.truthgate/config.yaml (or the --config path) holding every option at its default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return eris.Wrap(err, "find home directory")
			}
			path = filepath.Join(home, ".truthgate", "config.yaml")
		}
		if err := writeDefaultConfig(path); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Created default configuration: %s\n", path)
		return nil
	},
}

// writeDefaultConfig writes the defaults to path. It refuses to overwrite.
func writeDefaultConfig(path string) (err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		return eris.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "create config directory")
	}

	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return eris.Wrap(err, "encode config")
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create config file")
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = eris.Wrap(closeErr, "close config file")
		}
	}()

	header := "# truthgate configuration\n#\n" + commented(configHierarchy) + "#\n" +
		"# API keys are read from OPENAI_API_KEY, ANTHROPIC_API_KEY, NCBI_API_KEY\n" +
		"# and OPENFDA_API_KEY; OLLAMA_BASE_URL points at a local Ollama.\n\n"
	if _, err = f.WriteString(header); err != nil {
		return eris.Wrap(err, "write config")
	}
	if _, err = f.Write(data); err != nil {
		return eris.Wrap(err, "write config")
	}
	return nil
}

func commented(text string) string {
	return "# " + strings.ReplaceAll(text, "\n", "\n# ") + "\n"
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
