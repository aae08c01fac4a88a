// Package config reads the service configuration from the environment with
// cleanenv.
//
// Every setting has an env tag and a default, so an empty environment
// yields a working in-memory deployment. Durations accept ISO-8601
// ("PT6H", "P3D") as well as Go syntax ("6h"). Load validates the result
// and reports every invalid field at once:
//
//	cfg, err := config.Load()
//	if err != nil {
//		slog.Error("Invalid configuration", "err", err)
//		os.Exit(1)
//	}
//	opts, _ := cfg.MultiEmail.ToOptions()
package config
