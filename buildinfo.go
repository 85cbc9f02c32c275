package main

import (
	"log/slog"
	"runtime/debug"
)

func logBuildInfo(logger *slog.Logger) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		logger.Error("Build info unavailable")
		return
	}

	attrs := []any{
		slog.String("go_version", info.GoVersion),
		slog.String("main.path", info.Main.Path),
	}

	// Backup runs are audited long after the fact, so record which revision
	// produced them.
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision", "vcs.time", "vcs.modified":
			attrs = append(attrs, slog.String(s.Key, s.Value))
		}
	}

	logger.Info("Build info", attrs...)
}
