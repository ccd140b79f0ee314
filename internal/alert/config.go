package alert

import "encoding/json"

// Config is the shared alertConfig shape on Jobs and Monitors (spec §6).
type Config struct {
	Enabled                      bool     `json:"enabled"`
	ProviderIDs                  []string `json:"providerIds"`
	AlertOnFailure                bool    `json:"alertOnFailure"`
	AlertOnRecovery               bool    `json:"alertOnRecovery"`
	AlertOnSuccess                bool    `json:"alertOnSuccess"`
	AlertOnTimeout                bool    `json:"alertOnTimeout"`
	AlertOnSslExpiration           bool    `json:"alertOnSslExpiration"`
	FailureThreshold             int      `json:"failureThreshold"`
	RecoveryThreshold            int      `json:"recoveryThreshold"`
	SslDaysUntilExpirationWarning int     `json:"sslDaysUntilExpirationWarning"`
	CustomMessage                string   `json:"customMessage"`
}

// ParseConfig decodes a stored alertConfig JSON blob, applying spec
// defaults (failureThreshold=1, recoveryThreshold=1, sslWarn=30) when the
// corresponding field is absent or zero.
func ParseConfig(raw string) (Config, error) {
	var cfg Config
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return Config{}, err
		}
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.RecoveryThreshold <= 0 {
		cfg.RecoveryThreshold = 1
	}
	if cfg.SslDaysUntilExpirationWarning <= 0 {
		cfg.SslDaysUntilExpirationWarning = 30
	}
	return cfg, nil
}
