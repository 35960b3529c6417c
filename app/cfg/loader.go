package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/byronlabs/vysion-cti/app/failure"
	"github.com/byronlabs/vysion-cti/app/opencti"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

const (
	defaultConfigFile    = "config.yml"
	defaultConnectorName = "Vysion"
	defaultVysionURL     = "https://api.vysion.ai"
	defaultIntervalSecs  = 86400
	defaultScore         = 80
)

// Options that can also come from config.yml carry no default tag; an empty
// value means "not given" and falls through to the file, then the default.
type rawCfg struct {
	ConfigFile string `long:"config" env:"CONFIG_FILE" description:"Path to the YAML configuration file (default: config.yml)"`

	// Platform configuration
	OpenCTIURL   string `long:"opencti-url" env:"OPENCTI_URL" description:"OpenCTI platform URL"`
	OpenCTIToken string `long:"opencti-token" env:"OPENCTI_TOKEN" description:"OpenCTI API token"`

	// Connector configuration
	ConnectorID       string `long:"connector-id" env:"CONNECTOR_ID" description:"Connector identifier registered on the platform"`
	ConnectorName     string `long:"connector-name" env:"CONNECTOR_NAME" description:"Connector display name"`
	ConnectorMode     string `long:"mode" env:"CONNECTOR_MODE" description:"Connectors to run: import, enrichment or all"`
	ConnectorInterval int    `long:"interval" env:"CONNECTOR_INTERVAL" description:"Seconds between ransomware feed imports"`

	// Vysion configuration
	VysionAPIURL string `long:"vysion-api-url" env:"VYSION_API_URL" description:"Vysion API base URL"`
	VysionAPIKey string `long:"vysion-api-key" env:"VYSION_API_KEY" description:"Vysion API key"`
	VysionMaxTLP string `long:"max-tlp" env:"VYSION_MAX_TLP" description:"Highest TLP marking that may be sent to Vysion"`
	VysionScore  string `long:"score" env:"VYSION_SCORE" description:"Score written to enriched observables (0-100, default: 80)"`

	// Application configuration
	Port         string        `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string        `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (required for enrichment)"`
	LedgerPath   string        `long:"ledger-path" env:"LEDGER_PATH" default:"vysion.db" description:"SQLite file for the submission ledger and run history (empty disables)"`
	HTTPTimeout  time.Duration `long:"http-timeout" env:"HTTP_TIMEOUT" default:"30s" description:"Timeout for outbound HTTP requests"`
	RunOnce      bool          `long:"run-once" env:"RUN_ONCE" description:"Run a single import cycle and exit"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0" description:"User agent string for Vysion requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Madrid)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses args and the environment, layers them over the config file
// and validates the result. It returns nil, nil when help was requested.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, failure.Config("parse configuration", err)
	}

	configFile := cmp.Or(raw.ConfigFile, defaultConfigFile)
	file, err := readFile(configFile, raw.ConfigFile != "")
	if err != nil {
		return nil, failure.Config("load config file", err)
	}

	cfg := &Cfg{
		OpenCTIURL:    strings.TrimRight(cmp.Or(raw.OpenCTIURL, file.OpenCTI.URL), "/"),
		OpenCTIToken:  cmp.Or(raw.OpenCTIToken, file.OpenCTI.Token),
		ConnectorID:   cmp.Or(raw.ConnectorID, file.Connector.ID),
		ConnectorName: cmp.Or(raw.ConnectorName, file.Connector.Name, defaultConnectorName),
		Mode:          Mode(strings.ToLower(cmp.Or(raw.ConnectorMode, file.Connector.Mode, string(ModeAll)))),
		Interval:      time.Duration(cmp.Or(raw.ConnectorInterval, file.Connector.Interval, defaultIntervalSecs)) * time.Second,
		VysionAPIURL:  strings.TrimRight(cmp.Or(raw.VysionAPIURL, file.Vysion.APIURL, defaultVysionURL), "/"),
		VysionAPIKey:  cmp.Or(raw.VysionAPIKey, file.Vysion.APIKey),
		MaxTLP:        strings.ToUpper(cmp.Or(raw.VysionMaxTLP, file.Vysion.MaxTLP, opencti.DefaultTLP)),
		ConfigFile:    configFile,
		Port:          raw.Port,
		APIAccessKey:  raw.APIAccessKey,
		LedgerPath:    raw.LedgerPath,
		HTTPTimeout:   raw.HTTPTimeout,
		RunOnce:       raw.RunOnce,
		UserAgent:     raw.UserAgent,
		Timezone:      raw.Timezone,
		Debug:         raw.Debug,
		Version:       GetVersion(),
	}

	cfg.Score, err = resolveScore(raw.VysionScore, file.Vysion.Score)
	if err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

// resolveScore keeps an explicit 0 from either layer; only an absent value
// falls through to the default.
func resolveScore(flagValue string, fileValue *int) (int, error) {
	if flagValue != "" {
		score, err := strconv.Atoi(strings.TrimSpace(flagValue))
		if err != nil {
			return 0, failure.Config("parse configuration", fmt.Errorf("invalid score %q: %w", flagValue, err))
		}
		return score, nil
	}
	if fileValue != nil {
		return *fileValue, nil
	}
	return defaultScore, nil
}

func validate(cfg *Cfg) error {
	var missing []string
	if cfg.OpenCTIURL == "" {
		missing = append(missing, "opencti url")
	}
	if cfg.OpenCTIToken == "" {
		missing = append(missing, "opencti token")
	}
	if cfg.ConnectorID == "" {
		missing = append(missing, "connector id")
	}
	if cfg.VysionAPIKey == "" {
		missing = append(missing, "vysion api key")
	}
	if len(missing) > 0 {
		return failure.Config("validate configuration", fmt.Errorf("missing %s", strings.Join(missing, ", ")))
	}

	switch cfg.Mode {
	case ModeImport, ModeEnrichment, ModeAll:
	default:
		return failure.Config("validate configuration", fmt.Errorf("unknown mode %q", cfg.Mode))
	}

	if !opencti.ValidTLP(cfg.MaxTLP) {
		return failure.Config("validate configuration", fmt.Errorf("unknown max TLP %q", cfg.MaxTLP))
	}
	if cfg.Score < 0 || cfg.Score > 100 {
		return failure.Config("validate configuration", fmt.Errorf("score %d out of range 0-100", cfg.Score))
	}
	if cfg.Interval <= 0 {
		return failure.Config("validate configuration", errors.New("interval must be positive"))
	}
	// Enrichment events arrive over the HTTP API, which stays closed without a key.
	if cfg.EnrichmentEnabled() && !cfg.RunOnce && cfg.APIAccessKey == "" {
		return failure.Config("validate configuration", errors.New("api access key is required for the enrichment connector"))
	}

	return nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
