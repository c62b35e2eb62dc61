package config

import "strings"

// SanitizeMaster returns a copy of the config with secrets masked, for
// logging.
func SanitizeMaster(cfg *MasterConfig) *MasterConfig {
	sanitized := *cfg
	sanitized.Auth = sanitizeAuth(cfg.Auth)
	return &sanitized
}

// SanitizeNode returns a copy of the config with secrets masked.
func SanitizeNode(cfg *NodeConfig) *NodeConfig {
	sanitized := *cfg
	sanitized.Auth = sanitizeAuth(cfg.Auth)
	return &sanitized
}

func sanitizeAuth(a AuthSection) AuthSection {
	if a.Payload != "" {
		a.Payload = maskSecret(a.Payload)
	}
	if a.SecretHash != "" {
		a.SecretHash = "$argon2id$***"
	}
	return a
}

// maskSecret masks a secret value for safe logging.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
