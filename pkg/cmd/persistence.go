// Package cmd holds the shared wiring used by the command binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tabwright/tabwright/pkg/persistence"
	"github.com/tabwright/tabwright/pkg/persistence/file"
	"github.com/tabwright/tabwright/pkg/persistence/postgresql"
)

// NewPersistence selects a store from the database URL scheme. A
// postgres:// URL opens the relational store; anything else is treated
// as a data directory for the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to open postgres store", "error", err)
			panic(err)
		}

		return store
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"), logger)
	}
}
