package identity

import (
	"context"
	"database/sql"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// RegisterModels makes the identity models visible to the persistence layer
// for migrations and fixtures. Call once before opening the client.
func RegisterModels() {
	persistence.RegisterModel((*Account)(nil))
	persistence.RegisterModel((*RefreshToken)(nil))
	persistence.RegisterModel((*ActionToken)(nil))
	persistence.RegisterModel((*AdminGrant)(nil))
	persistence.RegisterModel((*AuthorProfile)(nil))
}

// OpenSQLite opens a bun handle over sqlite. Intended for tests and small
// deployments; production hosts wire their own dialect.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// CreateTables creates the identity schema if it does not exist yet. Hosts
// with a migration pipeline should prefer that over this helper.
func CreateTables(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*Account)(nil),
		(*RefreshToken)(nil),
		(*ActionToken)(nil),
		(*AdminGrant)(nil),
		(*AuthorProfile)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
