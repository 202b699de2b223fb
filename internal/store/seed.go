package store

import (
	"context"
	"fmt"
	"time"

	"chat-graphql/internal/dbexec"
	"chat-graphql/internal/entities"
	"chat-graphql/internal/planner"
)

// SeedUsernames are the users Seed creates, in insertion order.
var SeedUsernames = []string{"seedUser1", "seedUser2"}

type seedChat struct {
	message  string
	from, to int // indexes into SeedUsernames
	at       string
}

var seedChats = []seedChat{
	{message: "cool message", from: 0, to: 1, at: "2021-08-16T20:30:42Z"},
	{message: "cooler message", from: 0, to: 1, at: "2021-08-16T20:31:42Z"},
	{message: "even cooler message", from: 1, to: 0, at: "2021-08-16T20:32:42Z"},
	{message: "even cooler message!", from: 1, to: 0, at: "2021-08-16T20:33:42Z"},
}

// Seed loads two users and the conversation between them. It does nothing
// when the users table already has rows, so it is safe to run on every start.
func Seed(ctx context.Context, exec dbexec.QueryExecutor, now time.Time) (bool, error) {
	populated, err := hasUsers(ctx, exec)
	if err != nil || populated {
		return false, err
	}

	now = now.UTC()
	users := entities.User()
	ids := make([]int64, len(SeedUsernames))
	for i, name := range SeedUsernames {
		planned, err := planner.PlanInsert(users,
			[]string{"username", "created_at", "updated_at"},
			[]interface{}{name, now, now},
		)
		if err != nil {
			return false, err
		}
		ids[i], err = execInsert(ctx, exec, planned)
		if err != nil {
			return false, fmt.Errorf("failed to seed user %s: %w", name, err)
		}
	}

	chats := entities.Chat()
	for _, c := range seedChats {
		at, err := time.Parse(time.RFC3339, c.at)
		if err != nil {
			return false, err
		}
		planned, err := planner.PlanInsert(chats,
			[]string{"timestamp", "message", "from_id", "to_id", "created_at", "updated_at"},
			[]interface{}{at, c.message, ids[c.from], ids[c.to], now, now},
		)
		if err != nil {
			return false, err
		}
		if _, err := execInsert(ctx, exec, planned); err != nil {
			return false, fmt.Errorf("failed to seed chat %q: %w", c.message, err)
		}
	}
	return true, nil
}

func hasUsers(ctx context.Context, exec dbexec.QueryExecutor) (bool, error) {
	planned, err := planner.NewCollection(entities.User(), nil).Limit(1).ToSQL()
	if err != nil {
		return false, err
	}
	rows, err := exec.QueryContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return false, fmt.Errorf("failed to check for seed data: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	found := rows.Next()
	return found, rows.Err()
}

func execInsert(ctx context.Context, exec dbexec.QueryExecutor, planned planner.SQLQuery) (int64, error) {
	result, err := exec.ExecContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
