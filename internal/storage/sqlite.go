package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the knowledge base, conversation
// logs, health events, and the outbound retry queue.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database in dataDir and applies any
// pending migrations. Pass ":memory:" as dataDir for an in-memory database
// (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "mentorbot.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw database handle for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// --- Conversation logs ---

func (s *Store) SaveMessageLog(m MessageLog) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO message_logs (created_at, user_id, username, message_text, reply_text, reply_source)
		VALUES (?, ?, ?, ?, ?, ?)`,
		formatTime(createdAt), m.UserID, m.Username, m.Message, m.Reply, m.Source,
	)
	return err
}

func (s *Store) SaveFeedbackLog(f FeedbackLog) error {
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO feedback_logs (created_at, user_id, reply_text, rating, suggestion_id)
		VALUES (?, ?, ?, ?, ?)`,
		formatTime(createdAt), f.UserID, f.ReplyText, f.Rating, f.SuggestionID,
	)
	return err
}

// InactiveUsersSince returns users whose most recent message is older than
// cutoff. Users who have never written are unknown to the bot and are not
// reported.
func (s *Store) InactiveUsersSince(cutoff time.Time) ([]InactiveUser, error) {
	// The bare username column rides along with the MAX row, so a renamed
	// user is reported under their latest name.
	rows, err := s.db.Query(`
		SELECT user_id, username, MAX(created_at) AS last_seen
		FROM message_logs
		GROUP BY user_id
		HAVING last_seen < ?
		ORDER BY last_seen ASC`, formatTime(cutoff),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []InactiveUser
	for rows.Next() {
		var u InactiveUser
		var lastSeen string
		if err := rows.Scan(&u.UserID, &u.Username, &lastSeen); err != nil {
			return nil, err
		}
		t, err := parseTime(lastSeen)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		u.LastSeen = t
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- Suggestions ---

// ListSuggestions returns the whole knowledge base ordered by score
// descending, then id ascending. The order is the resolver's tie-break
// contract, so it is explicit here rather than left to SQLite.
func (s *Store) ListSuggestions() ([]Suggestion, error) {
	rows, err := s.db.Query(`
		SELECT id, keyword, suggestion_text, suggestion_link, score, created_at
		FROM suggestions ORDER BY score DESC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Suggestion
	for rows.Next() {
		var sg Suggestion
		var createdAt string
		if err := rows.Scan(&sg.ID, &sg.Keyword, &sg.Text, &sg.Link, &sg.Score, &createdAt); err != nil {
			return nil, err
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		sg.CreatedAt = t
		results = append(results, sg)
	}
	return results, rows.Err()
}

func (s *Store) GetSuggestion(id string) (Suggestion, error) {
	var sg Suggestion
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, keyword, suggestion_text, suggestion_link, score, created_at
		FROM suggestions WHERE id = ?`, id,
	).Scan(&sg.ID, &sg.Keyword, &sg.Text, &sg.Link, &sg.Score, &createdAt)
	if err == sql.ErrNoRows {
		return Suggestion{}, ErrNotFound
	}
	if err != nil {
		return Suggestion{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return Suggestion{}, fmt.Errorf("parsing created_at: %w", err)
	}
	sg.CreatedAt = t
	return sg, nil
}

func (s *Store) CountSuggestions() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM suggestions").Scan(&n)
	return n, err
}

// AdjustSuggestionScore applies delta to a suggestion's score and returns
// the new value. ErrNotFound is returned for unknown ids.
func (s *Store) AdjustSuggestionScore(id string, delta int) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning score transaction: %w", err)
	}
	defer tx.Rollback()

	var score int
	err = tx.QueryRow("SELECT score FROM suggestions WHERE id = ?", id).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	score += delta
	if _, err := tx.Exec("UPDATE suggestions SET score = ? WHERE id = ?", score, id); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing score update: %w", err)
	}
	return score, nil
}

// ImportSuggestions inserts records whose link is not already present and
// returns the number added. A record with a duplicate link is skipped, not
// an error; duplicate keywords are allowed. The whole batch commits in one
// transaction so concurrent readers observe either none or all of it.
func (s *Store) ImportSuggestions(recs []Suggestion) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer tx.Rollback()

	added := 0
	for _, rec := range recs {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM suggestions WHERE suggestion_link = ?", rec.Link).Scan(&exists); err != nil {
			return 0, fmt.Errorf("checking link %q: %w", rec.Link, err)
		}
		if exists > 0 {
			continue
		}

		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.Exec(`
			INSERT INTO suggestions (id, keyword, suggestion_text, suggestion_link, score, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Keyword, rec.Text, rec.Link, rec.Score, formatTime(createdAt),
		); err != nil {
			return 0, fmt.Errorf("inserting suggestion %s: %w", rec.ID, err)
		}
		added++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return added, nil
}

// --- Health events ---

func (s *Store) LogHealth(component, status, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO health_events (created_at, component, status, message)
		VALUES (?, ?, ?, ?)`,
		formatTime(time.Now()), component, status, message,
	)
	return err
}

// ErrorsSince returns ERROR health events recorded after cutoff, oldest first.
func (s *Store) ErrorsSince(cutoff time.Time) ([]HealthEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, component, status, message
		FROM health_events
		WHERE status = ? AND created_at > ?
		ORDER BY created_at ASC`, StatusError, formatTime(cutoff),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []HealthEvent
	for rows.Next() {
		var e HealthEvent
		var createdAt string
		if err := rows.Scan(&e.ID, &createdAt, &e.Component, &e.Status, &e.Message); err != nil {
			return nil, err
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		e.CreatedAt = t
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteLogsBefore removes message logs and health events older than cutoff
// and returns the total number of rows deleted.
func (s *Store) DeleteLogsBefore(cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning cleanup transaction: %w", err)
	}
	defer tx.Rollback()

	cut := formatTime(cutoff)

	res1, err := tx.Exec("DELETE FROM message_logs WHERE created_at < ?", cut)
	if err != nil {
		return 0, fmt.Errorf("deleting message logs: %w", err)
	}
	n1, err := res1.RowsAffected()
	if err != nil {
		return 0, err
	}

	res2, err := tx.Exec("DELETE FROM health_events WHERE created_at < ?", cut)
	if err != nil {
		return 0, fmt.Errorf("deleting health events: %w", err)
	}
	n2, err := res2.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing cleanup: %w", err)
	}
	return n1 + n2, nil
}

// --- Retry queue ---

// EnqueueRetry appends a failed outbound message to the durable retry queue.
func (s *Store) EnqueueRetry(item RetryItem) error {
	enqueuedAt := item.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO retry_queue (id, chat_id, message_text, reason, attempts, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.ChatID, item.Text, item.Reason, item.Attempts, formatTime(enqueuedAt),
	)
	return err
}

// DequeueRetryBatch atomically removes and returns up to limit oldest items
// (FIFO by enqueue time, then id). Removal happens on dequeue: a delivery
// failure after this call drops the item rather than re-enqueueing it.
func (s *Store) DequeueRetryBatch(limit int) ([]RetryItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning dequeue transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, chat_id, message_text, reason, attempts, enqueued_at
		FROM retry_queue
		ORDER BY enqueued_at ASC, id ASC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting retry batch: %w", err)
	}

	var batch []RetryItem
	for rows.Next() {
		var item RetryItem
		var enqueuedAt string
		if err := rows.Scan(&item.ID, &item.ChatID, &item.Text, &item.Reason, &item.Attempts, &enqueuedAt); err != nil {
			rows.Close()
			return nil, err
		}
		t, err := parseTime(enqueuedAt)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("parsing enqueued_at: %w", err)
		}
		item.EnqueuedAt = t
		batch = append(batch, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, item := range batch {
		if _, err := tx.Exec("DELETE FROM retry_queue WHERE id = ?", item.ID); err != nil {
			return nil, fmt.Errorf("removing retry item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing dequeue: %w", err)
	}
	return batch, nil
}

// RetryQueueLength reports the number of pending retry items.
func (s *Store) RetryQueueLength() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM retry_queue").Scan(&n)
	return n, err
}
