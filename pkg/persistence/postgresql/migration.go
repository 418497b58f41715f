package postgresql

import (
	"context"

	"github.com/tabwright/tabwright/pkg/persistence/sqlbase"
)

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				name VARCHAR(255) PRIMARY KEY,
				doc JSONB NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflows_updated_at ON workflows(updated_at);
		`,
	}
}

func (p *Persistence) migrate(ctx context.Context) error {
	return sqlbase.NewMigrationManager(p.logger, p.db, migrations()).RunMigrations(ctx)
}
