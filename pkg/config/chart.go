package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ChartAccount is one node of the chart-of-accounts seed file
type ChartAccount struct {
	Code           string          `yaml:"code"`
	Name           string          `yaml:"name"`
	Type           string          `yaml:"type"`
	Group          bool            `yaml:"group"`
	OpeningBalance decimal.Decimal `yaml:"opening_balance"`
	Description    string          `yaml:"description"`
	Children       []ChartAccount  `yaml:"children"`
}

// ChartConfig holds the seed chart of accounts
type ChartConfig struct {
	Accounts []ChartAccount `yaml:"accounts"`

	// Lookup map for fast access, keyed by lower-cased code
	byCode map[string]*ChartAccount
}

var chartAccountTypes = map[string]bool{
	"asset":     true,
	"liability": true,
	"equity":    true,
	"revenue":   true,
	"expense":   true,
}

// LoadChartConfig loads the chart of accounts from a YAML file
func LoadChartConfig(path string) (*ChartConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart config file: %w", err)
	}
	return ParseChartConfig(data)
}

// ParseChartConfig parses and validates YAML chart data
func ParseChartConfig(data []byte) (*ChartConfig, error) {
	var config ChartConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse chart config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.byCode = make(map[string]*ChartAccount)
	config.Walk(func(acc *ChartAccount, _ *ChartAccount) {
		config.byCode[strings.ToLower(acc.Code)] = acc
	})

	return &config, nil
}

// Validate validates the chart configuration
func (c *ChartConfig) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}

	seen := make(map[string]bool)
	var check func(accs []ChartAccount, parentType string) error
	check = func(accs []ChartAccount, parentType string) error {
		for _, acc := range accs {
			if acc.Code == "" {
				return fmt.Errorf("account code is required for account %q", acc.Name)
			}
			if acc.Name == "" {
				return fmt.Errorf("account name is required for code %s", acc.Code)
			}
			accType := acc.Type
			if accType == "" {
				accType = parentType
			}
			if !chartAccountTypes[accType] {
				return fmt.Errorf("invalid type %q for account %s", acc.Type, acc.Code)
			}
			if acc.Group && !acc.OpeningBalance.IsZero() {
				return fmt.Errorf("group account %s cannot carry an opening balance", acc.Code)
			}
			if !acc.Group && len(acc.Children) > 0 {
				return fmt.Errorf("account %s has children but is not a group", acc.Code)
			}
			key := strings.ToLower(acc.Code)
			if seen[key] {
				return fmt.Errorf("duplicate account code %s", acc.Code)
			}
			seen[key] = true
			if err := check(acc.Children, accType); err != nil {
				return err
			}
		}
		return nil
	}

	return check(c.Accounts, "")
}

// Walk visits every account parent-first. Children inherit the parent's type
// when their own is empty.
func (c *ChartConfig) Walk(fn func(acc *ChartAccount, parent *ChartAccount)) {
	var walk func(accs []ChartAccount, parent *ChartAccount)
	walk = func(accs []ChartAccount, parent *ChartAccount) {
		for i := range accs {
			acc := &accs[i]
			if acc.Type == "" && parent != nil {
				acc.Type = parent.Type
			}
			fn(acc, parent)
			walk(acc.Children, acc)
		}
	}
	walk(c.Accounts, nil)
}

// GetAccount returns the seed account for a code (case-insensitive)
func (c *ChartConfig) GetAccount(code string) (*ChartAccount, bool) {
	acc, ok := c.byCode[strings.ToLower(code)]
	return acc, ok
}

// Count returns the number of accounts in the chart
func (c *ChartConfig) Count() int {
	return len(c.byCode)
}
