// Package logging provides structured logging with per-module log level configuration.
//
// Loggers are plain *slog.Logger values tagged with a module attribute. Each
// module owns a slog.LevelVar, so levels can be raised or lowered at runtime
// without handing out new loggers.
//
// Output goes to stdout when it is connected to something, and to the systemd
// journal (identifier "mediagraph") when journald is reachable:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"renderer": "debug",
//			"encoders": "warn",
//		},
//	})
//
//	logger := logging.GetLogger("renderer")
//	logger.Warn("Optional stage unavailable", "stage", "orientation", "factory", "glvideoflip")
//
// Filter journal output by module:
//
//	journalctl -t mediagraph MODULE=renderer
//
// TOML form:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	renderer = "debug"
package logging
