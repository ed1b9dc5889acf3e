// Package config binds servicekit configuration from YAML: outbound
// HTTP client definitions keyed by client name, and per-check health
// defaults keyed by check name.
//
// Credential values support strict `${VAR}` environment expansion; a
// reference to a missing variable fails Load, so a misconfigured
// deployment dies at startup instead of sending empty credentials.
//
//	cfg, err := config.Load("servicekit.yml")
//	if err != nil {
//	    return err
//	}
//	clients, err := cfg.ClientOptions()
//	defaults, err := cfg.CheckDefaults()
package config
