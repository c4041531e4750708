// Package logger provides the structured logging interface used across mediafetch.
//
// It wraps zerolog behind a small Logger interface so packages can accept a
// logger, tests can pass NewNopLogger or a capturing TestLogger, and the CLI
// can swap console output for a JSON file while the TUI owns the terminal.
//
//	cfg := &config.LoggingConfig{Level: "info"}
//	if err := logger.Initialize(cfg); err != nil {
//		return err
//	}
//
//	log := logger.GetLogger().WithField("collection", key)
//	log.InfoWithFields("job planned", map[string]interface{}{
//		"tasks":   len(job.Tasks),
//		"skipped": job.Skipped,
//	})
package logger
