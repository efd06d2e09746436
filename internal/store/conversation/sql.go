package conversation

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/campusmind/portal/backend/internal/model/chat"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Dialect 选择 SQL 方言。
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore persists conversations through database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// OpenSQL opens dsn with the driver for dialect and applies the schema.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	driver := string(dialect)
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if dialect == DialectSQLite {
		// SQLite 只允许单写者。
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	store := &SQLStore{db: db, dialect: dialect, now: time.Now}
	if err := store.initializeSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}
	return store, nil
}

func (s *SQLStore) initializeSchema(ctx context.Context) error {
	migrationSQL, err := migrations.ReadFile("migrations/" + string(s.dialect) + ".sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Append implements Store.
func (s *SQLStore) Append(ctx context.Context, userID string, msg chat.Message) (chat.Message, error) {
	msg, err := prepare(userID, msg, s.now)
	if err != nil {
		return chat.Message{}, err
	}

	query := s.rebind(`
		INSERT INTO chat_messages (id, user_id, sender, text, created_at)
		VALUES (?, ?, ?, ?, ?)`)

	if _, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.UserID,
		string(msg.Sender),
		msg.Text,
		msg.Timestamp.UnixNano(),
	); err != nil {
		return chat.Message{}, fmt.Errorf("insert chat message: %w", err)
	}
	return msg, nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context, userID string) ([]chat.Message, error) {
	query := s.rebind(`
		SELECT id, user_id, sender, text, created_at
		FROM chat_messages
		WHERE user_id = ?
		ORDER BY created_at ASC, seq ASC`)

	rows, err := s.db.QueryContext(ctx, query, ownerKey(userID))
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, 16)
	for rows.Next() {
		var (
			msg    chat.Message
			sender string
			nanos  int64
		)
		if err := rows.Scan(&msg.ID, &msg.UserID, &sender, &msg.Text, &nanos); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msg.Sender = chat.Sender(sender)
		msg.Timestamp = time.Unix(0, nanos).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return messages, nil
}

// rebind 将 ? 占位符转换为 Postgres 的 $N 形式。
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
