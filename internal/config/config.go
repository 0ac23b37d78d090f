// Package config provides configuration parsing and validation for the
// alert engine service.
package config

import (
	"fmt"
	"time"

	"github.com/asaf-cyber/ProRecruit-sub002/internal/rules"
	"github.com/asaf-cyber/ProRecruit-sub002/internal/transition"
)

// Config holds all configuration parameters for the alert engine service.
type Config struct {
	PostgresDSN      string
	KafkaBrokers     string
	AlertEventsTopic string
	RedisAddr        string // empty disables metrics reporting
	HTTPPort         string
	ScanInterval     time.Duration
	PredicateTimeout time.Duration
	ScanWorkers      int

	// Rule thresholds
	StaleOpenDays        int
	DraftStaleDays       int
	StagnantPipelineSize int
	FastCloseDays        int
	BudgetFloor          float64

	// Transition tuning
	BonusEligibilityMonths int
	ReferralExpiryDays     int
}

// Thresholds returns the rule threshold parameters.
func (c *Config) Thresholds() rules.Thresholds {
	return rules.Thresholds{
		StaleOpenDays:        c.StaleOpenDays,
		DraftStaleDays:       c.DraftStaleDays,
		StagnantPipelineSize: c.StagnantPipelineSize,
		FastCloseDays:        c.FastCloseDays,
		BudgetFloor:          c.BudgetFloor,
	}
}

// TransitionConfig returns the transition tuning parameters.
func (c *Config) TransitionConfig() transition.Config {
	return transition.Config{
		BonusEligibilityMonths: c.BonusEligibilityMonths,
		ReferralExpiryDays:     c.ReferralExpiryDays,
	}
}

// Validate checks that all required configuration fields are set and have
// valid values. Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.AlertEventsTopic == "" {
		return fmt.Errorf("alert-events-topic cannot be empty")
	}
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan-interval must be > 0")
	}
	if c.PredicateTimeout <= 0 {
		return fmt.Errorf("predicate-timeout must be > 0")
	}
	if c.ScanWorkers <= 0 {
		return fmt.Errorf("scan-workers must be > 0")
	}
	if err := c.Thresholds().Validate(); err != nil {
		return err
	}
	if err := c.TransitionConfig().Validate(); err != nil {
		return err
	}
	return nil
}
