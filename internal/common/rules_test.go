package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"multisig-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

const sampleRulesYaml = `
rules:
  - name: "Savings split"
    type: percentage
    priority: 1
    conditions:
      min_amount: "10"
      kinds:
        - deposit
      days:
        - monday
        - friday
      start_time: "09:00"
      end_time: "17:00"
    splits:
      - destination: savings
        percentage: "60"
      - destination: investments
        percentage: "30"
    settings:
      decimal_places: 2
      remainder_action: keep_in_wallet
      require_approval: true
  - name: "Fixed bills"
    type: fixed_amount
    priority: 2
    splits:
      - destination: rent
        amount: "1200"
    settings:
      remainder_action: add_to_first
      allow_partial_split: true
      min_per_destination: "5"
      auto_execute: true
`

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write rules file: %v", err)
	}
	return path
}

func TestLoadRuleFile(t *testing.T) {
	path := writeRulesFile(t, sampleRulesYaml)

	rules, err := LoadRuleFile(path, "w-1")
	if err != nil {
		t.Fatalf("LoadRuleFile failed: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(rules))
	}

	first := rules[0]
	if first.WalletId != "w-1" || first.Name != "Savings split" {
		t.Errorf("Rule identity wrong: %+v", first)
	}
	if first.Type != models.RulePercentage || first.Priority != 1 {
		t.Errorf("Rule type/priority wrong: %+v", first)
	}
	if first.Status != models.RuleActive {
		t.Errorf("Expected loaded rules active, got %s", first.Status)
	}
	if first.Conditions.MinAmount == nil || !first.Conditions.MinAmount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("min_amount lost: %+v", first.Conditions)
	}
	if len(first.Conditions.Kinds) != 1 || first.Conditions.Kinds[0] != models.KindDeposit {
		t.Errorf("kinds lost: %+v", first.Conditions.Kinds)
	}
	if len(first.Conditions.Days) != 2 || first.Conditions.Days[0] != time.Monday || first.Conditions.Days[1] != time.Friday {
		t.Errorf("days lost: %+v", first.Conditions.Days)
	}
	if first.Conditions.StartTime != "09:00" || first.Conditions.EndTime != "17:00" {
		t.Errorf("time window lost: %+v", first.Conditions)
	}
	if len(first.Splits) != 2 || !first.Splits[0].Percentage.Equal(decimal.NewFromInt(60)) {
		t.Errorf("splits lost: %+v", first.Splits)
	}
	if !first.Settings.RequireApproval || first.Settings.RemainderAction != models.RemainderKeepInWallet {
		t.Errorf("settings lost: %+v", first.Settings)
	}
	if first.Settings.DecimalPlaces == nil || *first.Settings.DecimalPlaces != 2 {
		t.Errorf("decimal_places lost: %+v", first.Settings)
	}

	second := rules[1]
	if second.Type != models.RuleFixedAmount {
		t.Errorf("Expected fixed_amount rule, got %s", second.Type)
	}
	if !second.Splits[0].Amount.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("Expected amount 1200, got %s", second.Splits[0].Amount.String())
	}
	if !second.Settings.AllowPartialSplit || !second.Settings.AutoExecute {
		t.Errorf("settings flags lost: %+v", second.Settings)
	}
	if !second.Settings.MinPerDestination.Equal(decimal.NewFromInt(5)) {
		t.Errorf("min_per_destination lost: %s", second.Settings.MinPerDestination.String())
	}
	if second.Settings.DecimalPlaces != nil {
		t.Errorf("Expected absent decimal_places to stay unset, got %d", *second.Settings.DecimalPlaces)
	}
}

func TestLoadRuleFile_Errors(t *testing.T) {
	if _, err := LoadRuleFile(filepath.Join(t.TempDir(), "missing.yaml"), "w-1"); err == nil {
		t.Errorf("Expected error for missing file")
	}

	path := writeRulesFile(t, "rules: [")
	if _, err := LoadRuleFile(path, "w-1"); err == nil {
		t.Errorf("Expected error for malformed YAML")
	}

	path = writeRulesFile(t, `
rules:
  - type: percentage
    splits:
      - destination: savings
        percentage: "60"
`)
	if _, err := LoadRuleFile(path, "w-1"); err == nil {
		t.Errorf("Expected error for rule without a name")
	}

	path = writeRulesFile(t, `
rules:
  - name: "Bad day"
    type: percentage
    conditions:
      days:
        - caturday
    splits:
      - destination: savings
        percentage: "60"
`)
	if _, err := LoadRuleFile(path, "w-1"); err == nil {
		t.Errorf("Expected error for invalid weekday")
	}

	path = writeRulesFile(t, `
rules:
  - name: "Bad amount"
    type: percentage
    conditions:
      min_amount: "lots"
    splits:
      - destination: savings
        percentage: "60"
`)
	if _, err := LoadRuleFile(path, "w-1"); err == nil {
		t.Errorf("Expected error for unparseable amount")
	}
}
