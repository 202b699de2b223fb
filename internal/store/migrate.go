package store

import (
	"context"
	"fmt"

	"chat-graphql/internal/dbexec"
)

var mysqlSchema = []string{
	"CREATE TABLE IF NOT EXISTS `users` (" +
		"`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY, " +
		"`username` VARCHAR(255) NOT NULL, " +
		"`created_at` DATETIME(6) NOT NULL, " +
		"`updated_at` DATETIME(6) NOT NULL, " +
		"UNIQUE KEY `index_users_on_username` (`username`))",
	"CREATE TABLE IF NOT EXISTS `chats` (" +
		"`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY, " +
		"`timestamp` DATETIME(6) NULL, " +
		"`message` TEXT NULL, " +
		"`from_id` BIGINT NOT NULL, " +
		"`to_id` BIGINT NOT NULL, " +
		"`created_at` DATETIME(6) NOT NULL, " +
		"`updated_at` DATETIME(6) NOT NULL, " +
		"KEY `index_chats_on_from_id` (`from_id`), " +
		"KEY `index_chats_on_to_id` (`to_id`), " +
		"CONSTRAINT `fk_chats_from_id` FOREIGN KEY (`from_id`) REFERENCES `users` (`id`), " +
		"CONSTRAINT `fk_chats_to_id` FOREIGN KEY (`to_id`) REFERENCES `users` (`id`))",
}

var sqliteSchema = []string{
	"CREATE TABLE IF NOT EXISTS `users` (" +
		"`id` INTEGER PRIMARY KEY AUTOINCREMENT, " +
		"`username` TEXT NOT NULL UNIQUE, " +
		"`created_at` DATETIME NOT NULL, " +
		"`updated_at` DATETIME NOT NULL)",
	"CREATE TABLE IF NOT EXISTS `chats` (" +
		"`id` INTEGER PRIMARY KEY AUTOINCREMENT, " +
		"`timestamp` DATETIME NULL, " +
		"`message` TEXT NULL, " +
		"`from_id` INTEGER NOT NULL REFERENCES `users` (`id`), " +
		"`to_id` INTEGER NOT NULL REFERENCES `users` (`id`), " +
		"`created_at` DATETIME NOT NULL, " +
		"`updated_at` DATETIME NOT NULL)",
	"CREATE INDEX IF NOT EXISTS `index_chats_on_from_id` ON `chats` (`from_id`)",
	"CREATE INDEX IF NOT EXISTS `index_chats_on_to_id` ON `chats` (`to_id`)",
}

// SchemaStatements returns the DDL creating the chat tables for a driver.
func SchemaStatements(driver string) ([]string, error) {
	switch driver {
	case DriverMySQL:
		return mysqlSchema, nil
	case DriverSQLite:
		return sqliteSchema, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate creates the users and chats tables when they do not exist yet.
func Migrate(ctx context.Context, exec dbexec.QueryExecutor, driver string) error {
	stmts, err := SchemaStatements(driver)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := exec.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
