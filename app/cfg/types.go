package cfg

import "time"

type Mode string

const (
	ModeImport     Mode = "import"
	ModeEnrichment Mode = "enrichment"
	ModeAll        Mode = "all"
)

type Cfg struct {
	// Platform configuration
	OpenCTIURL   string
	OpenCTIToken string

	// Connector configuration
	ConnectorID   string
	ConnectorName string
	Mode          Mode
	Interval      time.Duration

	// Vysion configuration
	VysionAPIURL string
	VysionAPIKey string
	MaxTLP       string
	Score        int

	// Application configuration
	ConfigFile   string
	Port         string
	APIAccessKey string
	LedgerPath   string
	HTTPTimeout  time.Duration
	RunOnce      bool

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) ImportEnabled() bool {
	return c.Mode == ModeImport || c.Mode == ModeAll
}

func (c *Cfg) EnrichmentEnabled() bool {
	return c.Mode == ModeEnrichment || c.Mode == ModeAll
}
