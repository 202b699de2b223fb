package resolver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"regexp"
	"testing"
	"time"

	"chat-graphql/internal/authz"
	"chat-graphql/internal/dbexec"
	"chat-graphql/internal/entities"
	"chat-graphql/internal/logging"
	"chat-graphql/internal/policy"
	"chat-graphql/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

const chatSelect = "SELECT `chats`.`id`, `chats`.`timestamp`, `chats`.`message`, `chats`.`from_id`, `chats`.`to_id`, " +
	"`chats`.`created_at`, `chats`.`updated_at` FROM `chats`"

const defaultChatOrder = " ORDER BY `chats`.`created_at` ASC, `chats`.`id` ASC"

var chatColumns = []string{"id", "timestamp", "message", "from_id", "to_id", "created_at", "updated_at"}

var seededAt = time.Date(2021, 8, 17, 9, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

func expectQuery(t *testing.T, mock sqlmock.Sqlmock, sql string, args []interface{}, rows *sqlmock.Rows) {
	t.Helper()

	query := regexp.QuoteMeta(sql)
	expectation := mock.ExpectQuery(query)
	if len(args) > 0 {
		expectation = expectation.WithArgs(toDriverValues(args)...)
	}
	expectation.WillReturnRows(rows)
}

func toDriverValues(args []interface{}) []driver.Value {
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		values[i] = arg
	}
	return values
}

func chatRows() *sqlmock.Rows {
	return sqlmock.NewRows(chatColumns)
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(entities.All(), policy.Default(), nil)
	require.NoError(t, err)
	return reg
}

func asUser(id int64) context.Context {
	return authz.WithPrincipal(context.Background(), authz.Principal{Subject: "user", UserID: id})
}

func asAdmin() context.Context {
	return authz.WithPrincipal(context.Background(), authz.Principal{Subject: "admin", UserID: 1, Admin: true})
}

// newSeededExecutor returns an executor over a migrated, seeded in-memory
// SQLite database: users 1 and 2 with four chats between them.
func newSeededExecutor(t *testing.T) (dbexec.QueryExecutor, *sql.DB) {
	t.Helper()
	logger := logging.NewLogger(logging.Config{Output: io.Discard})
	h, err := store.Open(context.Background(), store.Options{Driver: store.DriverSQLite, DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = h.Close()
	})

	exec := dbexec.NewStandardExecutor(h.DB)
	require.NoError(t, store.Migrate(context.Background(), exec, store.DriverSQLite))
	_, err = store.Seed(context.Background(), exec, seededAt)
	require.NoError(t, err)
	return exec, h.DB
}
