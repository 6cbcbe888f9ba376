package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL  string
	Port         string
	IsProduction bool

	// Patronage formula knobs.
	LaborWeight        float64
	ExpertiseWeight    float64
	CapitalWeight      float64
	RelationshipWeight float64
	CashRate           float64
	RegulatoryMinCash  float64
	MaxConcentration   float64
	BookTaxDivergence  float64

	// Governance.
	CloseApprovalQuorum int

	// TreasuryAccountID is the cash account credited when a distribution
	// completes. Empty skips the treasury posting.
	TreasuryAccountID string

	// EquitySuspenseAccountID is the equity account debited when an executed
	// close moves the allocated surplus into member capital ledger accounts.
	// Empty skips the settlement posting.
	EquitySuspenseAccountID string

	// Reactor retry policy.
	ReactorMaxAttempts       int
	ReactorBaseBackoff       time.Duration
	ReactorMaxBackoff        time.Duration
	ReactorBackoffMultiplier float64
}

// LoadConfig loads configuration from environment variables and .env if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("LABOR_WEIGHT", 1.0)
	viper.SetDefault("EXPERTISE_WEIGHT", 1.5)
	viper.SetDefault("CAPITAL_WEIGHT", 1.0)
	viper.SetDefault("RELATIONSHIP_WEIGHT", 0.5)
	viper.SetDefault("CASH_RATE", 0.20)
	viper.SetDefault("REGULATORY_MIN_CASH_RATE", 0.20)
	viper.SetDefault("MAX_CONCENTRATION", 0.50)
	viper.SetDefault("BOOK_TAX_DIVERGENCE", 0.0)
	viper.SetDefault("CLOSE_APPROVAL_QUORUM", 2)
	viper.SetDefault("TREASURY_ACCOUNT_ID", "")
	viper.SetDefault("EQUITY_SUSPENSE_ACCOUNT_ID", "")
	viper.SetDefault("REACTOR_MAX_ATTEMPTS", 3)
	viper.SetDefault("REACTOR_BASE_BACKOFF", "1s")
	viper.SetDefault("REACTOR_MAX_BACKOFF", "60s")
	viper.SetDefault("REACTOR_BACKOFF_MULTIPLIER", 2.0)

	viper.AutomaticEnv()

	cfg := &Config{}
	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}
	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")

	cfg.LaborWeight = viper.GetFloat64("LABOR_WEIGHT")
	cfg.ExpertiseWeight = viper.GetFloat64("EXPERTISE_WEIGHT")
	cfg.CapitalWeight = viper.GetFloat64("CAPITAL_WEIGHT")
	cfg.RelationshipWeight = viper.GetFloat64("RELATIONSHIP_WEIGHT")
	cfg.CashRate = viper.GetFloat64("CASH_RATE")
	cfg.RegulatoryMinCash = viper.GetFloat64("REGULATORY_MIN_CASH_RATE")
	cfg.MaxConcentration = viper.GetFloat64("MAX_CONCENTRATION")
	cfg.BookTaxDivergence = viper.GetFloat64("BOOK_TAX_DIVERGENCE")

	if cfg.CashRate < cfg.RegulatoryMinCash {
		log.Printf("Warning: CASH_RATE (%v) below REGULATORY_MIN_CASH_RATE (%v); using the regulatory minimum.\n", cfg.CashRate, cfg.RegulatoryMinCash)
		cfg.CashRate = cfg.RegulatoryMinCash
	}

	cfg.TreasuryAccountID = viper.GetString("TREASURY_ACCOUNT_ID")
	cfg.EquitySuspenseAccountID = viper.GetString("EQUITY_SUSPENSE_ACCOUNT_ID")

	cfg.CloseApprovalQuorum = viper.GetInt("CLOSE_APPROVAL_QUORUM")
	if cfg.CloseApprovalQuorum < 1 {
		log.Println("Warning: CLOSE_APPROVAL_QUORUM must be at least 1. Defaulting to 1.")
		cfg.CloseApprovalQuorum = 1
	}

	cfg.ReactorMaxAttempts = viper.GetInt("REACTOR_MAX_ATTEMPTS")

	baseBackoffStr := viper.GetString("REACTOR_BASE_BACKOFF")
	baseBackoff, err := time.ParseDuration(baseBackoffStr)
	if err != nil {
		baseBackoff = time.Second
		log.Printf("Warning: Invalid value for REACTOR_BASE_BACKOFF ('%s'). Defaulting to %s.\n", baseBackoffStr, baseBackoff)
	}
	cfg.ReactorBaseBackoff = baseBackoff

	maxBackoffStr := viper.GetString("REACTOR_MAX_BACKOFF")
	maxBackoff, err := time.ParseDuration(maxBackoffStr)
	if err != nil {
		maxBackoff = 60 * time.Second
		log.Printf("Warning: Invalid value for REACTOR_MAX_BACKOFF ('%s'). Defaulting to %s.\n", maxBackoffStr, maxBackoff)
	}
	cfg.ReactorMaxBackoff = maxBackoff
	cfg.ReactorBackoffMultiplier = viper.GetFloat64("REACTOR_BACKOFF_MULTIPLIER")

	return cfg, nil
}

// FormulaConfig converts the loaded knobs into the domain formula configuration.
func (c *Config) FormulaConfig() domain.FormulaConfig {
	fc := domain.DefaultFormulaConfig()
	fc.Weights[domain.ContribLabor] = decimal.NewFromFloat(c.LaborWeight)
	fc.Weights[domain.ContribExpertise] = decimal.NewFromFloat(c.ExpertiseWeight)
	fc.Weights[domain.ContribCapital] = decimal.NewFromFloat(c.CapitalWeight)
	fc.Weights[domain.ContribRelationship] = decimal.NewFromFloat(c.RelationshipWeight)
	fc.CashRate = decimal.NewFromFloat(c.CashRate)
	fc.RegulatoryMinCash = decimal.NewFromFloat(c.RegulatoryMinCash)
	fc.MaxConcentration = decimal.NewFromFloat(c.MaxConcentration)
	fc.BookTaxDivergence = decimal.NewFromFloat(c.BookTaxDivergence)
	return fc
}
