package common

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"multisig-wallet-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// RuleFileEntry is one split rule as written in a rules YAML file.
type RuleFileEntry struct {
	Name       string             `yaml:"name"`
	Type       string             `yaml:"type"`
	Priority   int                `yaml:"priority"`
	Conditions RuleFileConditions `yaml:"conditions"`
	Splits     []RuleFileSplit    `yaml:"splits"`
	Settings   RuleFileSettings   `yaml:"settings"`
}

type RuleFileConditions struct {
	MinAmount  string   `yaml:"min_amount"`
	MaxAmount  string   `yaml:"max_amount"`
	Kinds      []string `yaml:"kinds"`
	Days       []string `yaml:"days"`
	StartTime  string   `yaml:"start_time"`
	EndTime    string   `yaml:"end_time"`
	MinBalance string   `yaml:"min_balance"`
	MaxBalance string   `yaml:"max_balance"`
}

type RuleFileSplit struct {
	Destination    string `yaml:"destination"`
	Percentage     string `yaml:"percentage"`
	Amount         string `yaml:"amount"`
	Priority       int    `yaml:"priority"`
	AllocationType string `yaml:"allocation_type"`
}

type RuleFileSettings struct {
	DecimalPlaces     *int32 `yaml:"decimal_places"`
	RemainderAction   string `yaml:"remainder_action"`
	AllowPartialSplit bool   `yaml:"allow_partial_split"`
	MinPerDestination string `yaml:"min_per_destination"`
	AutoExecute       bool   `yaml:"auto_execute"`
	RequireApproval   bool   `yaml:"require_approval"`
}

type rulesFile struct {
	Rules []RuleFileEntry `yaml:"rules"`
}

// LoadRuleFile reads split rule definitions from a YAML file and converts
// them into domain rules for the given wallet. Validation happens in
// Engine.CreateRule; this only parses.
func LoadRuleFile(path string, walletId string) ([]models.SplitRule, error) {
	var rulesPath string
	if filepath.IsAbs(path) {
		rulesPath = path
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		rulesPath = filepath.Join(wd, path)
	}

	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}

	rules := make([]models.SplitRule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		rule, err := convertRuleEntry(entry, walletId)
		if err != nil {
			return nil, fmt.Errorf("rule at index %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func convertRuleEntry(entry RuleFileEntry, walletId string) (models.SplitRule, error) {
	if entry.Name == "" {
		return models.SplitRule{}, fmt.Errorf("missing name")
	}

	conditions, err := convertConditions(entry.Conditions)
	if err != nil {
		return models.SplitRule{}, err
	}

	splits := make([]models.SplitEntry, 0, len(entry.Splits))
	for _, split := range entry.Splits {
		converted, err := convertSplit(split)
		if err != nil {
			return models.SplitRule{}, err
		}
		splits = append(splits, converted)
	}

	minPerDest := decimal.Zero
	if entry.Settings.MinPerDestination != "" {
		minPerDest, err = decimal.NewFromString(entry.Settings.MinPerDestination)
		if err != nil {
			return models.SplitRule{}, fmt.Errorf("invalid min_per_destination: %w", err)
		}
	}

	return models.SplitRule{
		WalletId:   walletId,
		Name:       entry.Name,
		Type:       models.RuleType(entry.Type),
		Status:     models.RuleActive,
		Priority:   entry.Priority,
		Conditions: conditions,
		Splits:     splits,
		Settings: models.AdvancedSettings{
			DecimalPlaces:     entry.Settings.DecimalPlaces,
			RemainderAction:   models.RemainderAction(entry.Settings.RemainderAction),
			AllowPartialSplit: entry.Settings.AllowPartialSplit,
			MinPerDestination: minPerDest,
			AutoExecute:       entry.Settings.AutoExecute,
			RequireApproval:   entry.Settings.RequireApproval,
		},
	}, nil
}

func convertConditions(in RuleFileConditions) (models.RuleConditions, error) {
	out := models.RuleConditions{
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
	}

	var err error
	if out.MinAmount, err = optionalDecimal(in.MinAmount, "min_amount"); err != nil {
		return out, err
	}
	if out.MaxAmount, err = optionalDecimal(in.MaxAmount, "max_amount"); err != nil {
		return out, err
	}
	if out.MinBalance, err = optionalDecimal(in.MinBalance, "min_balance"); err != nil {
		return out, err
	}
	if out.MaxBalance, err = optionalDecimal(in.MaxBalance, "max_balance"); err != nil {
		return out, err
	}

	for _, kind := range in.Kinds {
		out.Kinds = append(out.Kinds, models.TransactionKind(kind))
	}
	for _, day := range in.Days {
		weekday, err := parseWeekday(day)
		if err != nil {
			return out, err
		}
		out.Days = append(out.Days, weekday)
	}
	return out, nil
}

func convertSplit(in RuleFileSplit) (models.SplitEntry, error) {
	if in.Destination == "" {
		return models.SplitEntry{}, fmt.Errorf("split missing destination")
	}

	out := models.SplitEntry{
		Destination:    in.Destination,
		Percentage:     decimal.Zero,
		Amount:         decimal.Zero,
		Priority:       in.Priority,
		AllocationType: models.AllocationType(in.AllocationType),
	}

	var err error
	if in.Percentage != "" {
		if out.Percentage, err = decimal.NewFromString(in.Percentage); err != nil {
			return out, fmt.Errorf("invalid percentage %q: %w", in.Percentage, err)
		}
	}
	if in.Amount != "" {
		if out.Amount, err = decimal.NewFromString(in.Amount); err != nil {
			return out, fmt.Errorf("invalid amount %q: %w", in.Amount, err)
		}
	}
	return out, nil
}

func optionalDecimal(value, field string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return &d, nil
}

func parseWeekday(value string) (time.Weekday, error) {
	days := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}
	if day, ok := days[value]; ok {
		return day, nil
	}
	return 0, fmt.Errorf("invalid weekday %q", value)
}
