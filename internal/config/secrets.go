package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use it when logging the active configuration.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	// Exchange
	redact(&out.Exchange.APIKey)

	// Redis
	redact(&out.Redis.Password)

	// Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Server
	redact(&out.Server.APIKey)

	// Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	out.Trading.Symbols = cloneStrings(cfg.Trading.Symbols)
	out.Server.CORSOrigins = cloneStrings(cfg.Server.CORSOrigins)
	out.Notify.Events = cloneStrings(cfg.Notify.Events)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
