package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"chat-graphql/internal/dbexec"
	"chat-graphql/internal/entities"
	"chat-graphql/internal/planner"
	"chat-graphql/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-playground/validator/v10"
)

// NewChatMessage is the input for creating a chat message.
type NewChatMessage struct {
	FromUserID int64      `label:"From" validate:"required"`
	ToUserID   int64      `label:"To" validate:"required"`
	Timestamp  *time.Time `label:"Timestamp"`
	Message    string     `label:"Message" validate:"required,max=4096"`
}

// ValidationError lists every reason a message was not saved, phrased for
// the caller, e.g. "From must exist".
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Messages)
}

// ChatWriter persists chat messages.
type ChatWriter interface {
	// CreateChatMessage stores msg and returns the new chat id. Rejected input
	// is reported as *ValidationError.
	CreateChatMessage(ctx context.Context, msg NewChatMessage) (int64, error)
}

// SQLChatWriter writes chat messages through a query executor.
type SQLChatWriter struct {
	executor dbexec.QueryExecutor
	validate *validator.Validate
	now      func() time.Time
}

// NewChatWriter creates a writer that stamps rows with the current UTC time.
func NewChatWriter(executor dbexec.QueryExecutor) *SQLChatWriter {
	return &SQLChatWriter{
		executor: executor,
		validate: newValidator(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return f.Name
	})
	return v
}

func (w *SQLChatWriter) CreateChatMessage(ctx context.Context, msg NewChatMessage) (int64, error) {
	if messages := validationMessages(w.validate.Struct(msg)); len(messages) > 0 {
		return 0, &ValidationError{Messages: messages}
	}

	missing, err := w.missingUsers(ctx, msg)
	if err != nil {
		return 0, err
	}
	if len(missing) > 0 {
		return 0, &ValidationError{Messages: missing}
	}

	now := w.now()
	var timestamp interface{}
	if msg.Timestamp != nil {
		timestamp = msg.Timestamp.UTC()
	}
	planned, err := planner.PlanInsert(entities.Chat(),
		[]string{"timestamp", "message", "from_id", "to_id", "created_at", "updated_at"},
		[]interface{}{timestamp, msg.Message, msg.FromUserID, msg.ToUserID, now, now},
	)
	if err != nil {
		return 0, err
	}

	result, err := w.executor.ExecContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return 0, normalizeWriteError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new chat id: %w", err)
	}
	return id, nil
}

// missingUsers reports a "must exist" message for each referenced user that
// is not stored.
func (w *SQLChatWriter) missingUsers(ctx context.Context, msg NewChatMessage) ([]string, error) {
	users := entities.User()
	query, args, err := sq.Select(sqlutil.QuoteIdentifier(users.PrimaryKey)).
		From(sqlutil.QuoteIdentifier(users.Table)).
		Where(sq.Eq{sqlutil.QuoteIdentifier(users.PrimaryKey): []int64{msg.FromUserID, msg.ToUserID}}).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := w.executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up users: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	found := make(map[int64]bool, 2)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	if !found[msg.FromUserID] {
		missing = append(missing, "From must exist")
	}
	if !found[msg.ToUserID] {
		missing = append(missing, "To must exist")
	}
	return missing, nil
}

func validationMessages(err error) []string {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			if fe.Kind() == reflect.String {
				messages = append(messages, fe.Field()+" can't be blank")
			} else {
				messages = append(messages, fe.Field()+" must exist")
			}
		case "max":
			messages = append(messages, fmt.Sprintf("%s is too long (maximum is %s characters)", fe.Field(), fe.Param()))
		default:
			messages = append(messages, fe.Field()+" is invalid")
		}
	}
	return messages
}
