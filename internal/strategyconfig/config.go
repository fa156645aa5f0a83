package strategyconfig

// Config is the ordered strategy list. A strategy's position in the list is its index
// everywhere else (ledgers, cash records, contributor sets).
// ⭐ SSOT: 전략 순서 = 전략 인덱스
type Config struct {
	Strategies []Strategy `yaml:"strategies" json:"strategies"`
}

// Strategy describes one strategy's spreadsheet and ledger file
type Strategy struct {
	Name          string `yaml:"name" json:"name"`
	SheetURL      string `yaml:"sheet_url" json:"sheet_url"`
	InputTab      string `yaml:"input_tab,omitempty" json:"input_tab,omitempty"`           // default Sheet1
	PositionsFile string `yaml:"positions_file,omitempty" json:"positions_file,omitempty"` // default strategyN_positions.json
}

// DefaultInputTab is the tab holding target positions when none is configured
const DefaultInputTab = "Sheet1"

// Tab returns the configured input tab or the default
func (s Strategy) Tab() string {
	if s.InputTab == "" {
		return DefaultInputTab
	}
	return s.InputTab
}

// Names returns strategy names in index order
func (c *Config) Names() []string {
	names := make([]string, len(c.Strategies))
	for i, s := range c.Strategies {
		names[i] = s.Name
	}
	return names
}

// PositionFiles returns the configured ledger file per strategy ("" = default name)
func (c *Config) PositionFiles() []string {
	files := make([]string, len(c.Strategies))
	for i, s := range c.Strategies {
		files[i] = s.PositionsFile
	}
	return files
}

// Index returns the index of the strategy with the given name, or -1
func (c *Config) Index(name string) int {
	for i, s := range c.Strategies {
		if s.Name == name {
			return i
		}
	}
	return -1
}
