package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	RoleStudent = "student"
	RoleCoach   = "coach"
	RoleSystem  = "system"
)

// Turn is one side of a coaching exchange. Student turns carry the typed or
// transcribed input; coach turns carry the reply text and, when the reply was
// spoken, the path of the saved audio clip.
type Turn struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Role          string    `json:"role"`
	Text          string    `json:"text"`
	Transcription string    `json:"transcription,omitempty"`
	AudioPath     string    `json:"audio_path,omitempty"`
	TimerLabel    string    `json:"timer_label,omitempty"`
}

type Nudge struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	Activity  string    `json:"activity"`
	Message   string    `json:"message"`
}

type TimerRun struct {
	ID        string     `json:"id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Label     string     `json:"label"`
	Completed bool       `json:"completed"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "focusd.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			role TEXT NOT NULL,
			text TEXT NOT NULL,
			transcription TEXT NOT NULL DEFAULT '',
			audio_path TEXT NOT NULL DEFAULT '',
			timer_label TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create turns table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS nudges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			source TEXT NOT NULL,
			activity TEXT NOT NULL,
			message TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create nudges table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS timer_runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			label TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0
		);
	`); err != nil {
		return fmt.Errorf("create timer_runs table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_turns_created_at ON turns(created_at)"); err != nil {
		return fmt.Errorf("create turns index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_nudges_created_at ON nudges(created_at)"); err != nil {
		return fmt.Errorf("create nudges index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) AppendTurn(turn Turn) error {
	if strings.TrimSpace(turn.ID) == "" {
		return errors.New("turn id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO turns(id, created_at, role, text, transcription, audio_path, timer_label) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		turn.ID,
		turn.CreatedAt.UTC().Format(time.RFC3339Nano),
		turn.Role,
		turn.Text,
		turn.Transcription,
		turn.AudioPath,
		turn.TimerLabel,
	)
	if err != nil {
		return fmt.Errorf("append turn %s: %w", turn.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTurn(id string) (Turn, error) {
	row := s.db.QueryRow(
		`SELECT id, created_at, role, text, transcription, audio_path, timer_label FROM turns WHERE id = ?`,
		id,
	)

	var turn Turn
	var createdAt string
	if err := row.Scan(&turn.ID, &createdAt, &turn.Role, &turn.Text, &turn.Transcription, &turn.AudioPath, &turn.TimerLabel); err != nil {
		return Turn{}, fmt.Errorf("query turn %s: %w", id, err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Turn{}, fmt.Errorf("parse turn %s created_at: %w", id, err)
	}
	turn.CreatedAt = parsed

	return turn, nil
}

func (s *SQLiteStore) GetTurnsByDate(date string) ([]Turn, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, role, text, transcription, audio_path, timer_label
		 FROM turns
		 WHERE substr(created_at, 1, 10) = ?
		 ORDER BY created_at ASC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	return scanTurns(rows)
}

func (s *SQLiteStore) GetRecentTurns(limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, created_at, role, text, transcription, audio_path, timer_label
		 FROM turns
		 ORDER BY created_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	// Reverse into chronological order for display.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(created_at, 1, 10) AS date FROM turns ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) AppendNudge(createdAt time.Time, source, activity, message string) error {
	_, err := s.db.Exec(
		`INSERT INTO nudges(created_at, source, activity, message) VALUES(?, ?, ?, ?)`,
		createdAt.UTC().Format(time.RFC3339Nano),
		source,
		activity,
		message,
	)
	if err != nil {
		return fmt.Errorf("append nudge: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetNudgesByDate(date string) ([]Nudge, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, source, activity, message
		 FROM nudges
		 WHERE substr(created_at, 1, 10) = ?
		 ORDER BY created_at ASC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query nudges by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	nudges := make([]Nudge, 0, 16)
	for rows.Next() {
		var n Nudge
		var createdAt string
		if err := rows.Scan(&n.ID, &createdAt, &n.Source, &n.Activity, &n.Message); err != nil {
			return nil, fmt.Errorf("scan nudge: %w", err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse nudge created_at: %w", err)
		}
		n.CreatedAt = parsed

		nudges = append(nudges, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nudges rows: %w", err)
	}

	return nudges, nil
}

func (s *SQLiteStore) StartTimerRun(id string, startedAt time.Time, label string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("timer run id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO timer_runs(id, started_at, label) VALUES(?, ?, ?)`,
		id,
		startedAt.UTC().Format(time.RFC3339Nano),
		label,
	)
	if err != nil {
		return fmt.Errorf("start timer run %s: %w", id, err)
	}
	return nil
}

// FinishTimerRun records how a run ended. Completed runs reached zero; an
// incomplete finish means the run was replaced or the agent shut down.
func (s *SQLiteStore) FinishTimerRun(id string, endedAt time.Time, completed bool) error {
	res, err := s.db.Exec(
		`UPDATE timer_runs SET ended_at = ?, completed = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(completed),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish timer run %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish timer run rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PruneBefore deletes turns and nudges older than the cutoff and returns how
// many turns were removed. Saved audio files are the caller's problem.
func (s *SQLiteStore) PruneBefore(cutoff time.Time) (int64, error) {
	ts := cutoff.UTC().Format(time.RFC3339Nano)

	res, err := s.db.Exec(`DELETE FROM turns WHERE created_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("prune turns: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune turns rows affected: %w", err)
	}

	if _, err := s.db.Exec(`DELETE FROM nudges WHERE created_at < ?`, ts); err != nil {
		return removed, fmt.Errorf("prune nudges: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM timer_runs WHERE started_at < ?`, ts); err != nil {
		return removed, fmt.Errorf("prune timer runs: %w", err)
	}

	return removed, nil
}

func scanTurns(rows *sql.Rows) ([]Turn, error) {
	turns := make([]Turn, 0, 32)
	for rows.Next() {
		var turn Turn
		var createdAt string
		if err := rows.Scan(&turn.ID, &createdAt, &turn.Role, &turn.Text, &turn.Transcription, &turn.AudioPath, &turn.TimerLabel); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse turn created_at: %w", err)
		}
		turn.CreatedAt = parsed

		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns rows: %w", err)
	}

	return turns, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
