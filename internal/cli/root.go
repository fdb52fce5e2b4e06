package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/truthgate/internal/model"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is the release version, set at build time with -ldflags
var Version = "v0.3.0"

// keyDelim separates nested config keys. Map keys such as "fda.gov"
// contain dots, so the viper default cannot be used.
const keyDelim = "::"

var (
	cfgFile  string
	verbose  bool
	logLevel string

	// cfg is the configuration loaded before every command runs
	cfg *model.Config
)

var rootCmd = &cobra.Command{
	Use:   "truthgate",
	Short: "truthgate - evidence validation and truthfulness gate for drug research",
	Long: `truthgate answers research questions about drugs and molecules from
public evidence: openFDA labels, PubMed, ClinicalTrials.gov and selected
trade press.

Every evidence record is scored for source trust and freshness, checked for
conflicts, and aggregated into verified, partially verified, unverified or
conflicting claims. The generated narrative passes a sentence-level gate:
only sentences citing supported claims survive.

When the evidence cannot support an answer, truthgate abstains and says why.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		if verbose {
			loaded.Output.Verbose = true
			if logLevel == "" {
				loaded.Log.Level = "debug"
			}
		}
		if err := model.InitLogger(loaded.Log); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "truthgate %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.truthgate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig layers the config file and TRUTHGATE_* environment variables
// over the built-in defaults
func loadConfig(path string) (*model.Config, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelim))

	defaults, err := defaultsMap()
	if err != nil {
		return nil, err
	}
	setDefaults(v, "", defaults)

	if path != "" {
		v.SetConfigFile(path)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".truthgate"))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("TRUTHGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelim, "_"))
	v.AutomaticEnv()
	// Keys omitted from the defaults when empty
	for _, key := range []string{"llm::api_key", "llm::base_url", "connectors::fda::api_key", "connectors::pubmed::api_key"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrapf(err, "cli: read config %s", path)
		}
	}

	loaded := &model.Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, eris.Wrap(err, "cli: decode config")
	}
	applyEnvKeys(loaded)
	return loaded, nil
}

// defaultsMap renders DefaultConfig as a generic map keyed by yaml names
func defaultsMap() (map[string]any, error) {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return nil, eris.Wrap(err, "cli: encode defaults")
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "cli: decode defaults")
	}
	return m, nil
}

// setDefaults registers every leaf of m so AutomaticEnv can override it
func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + keyDelim + k
		}
		if nested, ok := val.(map[string]any); ok && len(nested) > 0 {
			setDefaults(v, key, nested)
			continue
		}
		v.SetDefault(key, val)
	}
}

// applyEnvKeys fills provider credentials from their conventional variables
func applyEnvKeys(c *model.Config) {
	if c.LLM.APIKey == "" {
		switch strings.ToLower(c.LLM.Provider) {
		case "openai":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if c.LLM.BaseURL == "" && strings.EqualFold(c.LLM.Provider, "ollama") {
		c.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if c.Connectors.PubMed.APIKey == "" {
		c.Connectors.PubMed.APIKey = os.Getenv("NCBI_API_KEY")
	}
	if c.Connectors.FDA.APIKey == "" {
		c.Connectors.FDA.APIKey = os.Getenv("OPENFDA_API_KEY")
	}
}

// checkLLMKey reports a missing API key for hosted providers
func checkLLMKey(c *model.Config) error {
	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.APIKey == "" {
			return eris.New("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		if c.LLM.APIKey == "" {
			return eris.New("ANTHROPIC_API_KEY environment variable not set")
		}
	}
	return nil
}
