package engagement

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/nao1215/blogpress/pkg/migration"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// OpenDB はSQLiteデータベースを開く。pathに":memory:"を渡すとインメモリDBになる。
func OpenDB(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == ":memory:" {
		// インメモリDBは接続ごとに別のDBになるため1本に絞る
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// InitSchema は未適用のマイグレーションをSQLiteデータベースに適用する。
func InitSchema(ctx context.Context, db *sql.DB, logger logrus.FieldLogger) error {
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations", logger); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
