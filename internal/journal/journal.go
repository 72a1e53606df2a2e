package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/roach88/factlog/internal/engine"
	"github.com/roach88/factlog/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - batches and batch_facts
const currentSchemaVersion = 1

// ErrEmptyBatch is returned when appending a delta with no facts.
var ErrEmptyBatch = errors.New("journal: empty batch")

// ChecksumMismatchError reports a stored batch whose facts no longer hash to
// its recorded checksum.
type ChecksumMismatchError struct {
	BatchID string
	Seq     int64
	Want    string
	Got     string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("journal: batch %s (seq %d) checksum mismatch: recorded %s, computed %s",
		e.BatchID, e.Seq, e.Want, e.Got)
}

// IsChecksumMismatch reports whether err is a ChecksumMismatchError.
func IsChecksumMismatch(err error) bool {
	var ce *ChecksumMismatchError
	return errors.As(err, &ce)
}

// Batch is one journaled delta.
type Batch struct {
	ID        string
	Seq       int64
	Checksum  string
	Added     []ir.Fact
	Retracted []ir.Fact
}

// Delta returns the batch as an engine delta.
func (b Batch) Delta() engine.Delta {
	return engine.Delta{Added: b.Added, Retracted: b.Retracted}
}

// Applier receives replayed batches. *engine.Engine implements it.
type Applier interface {
	ApplyDelta(ctx context.Context, d engine.Delta) (engine.DeltaResult, error)
}

// Journal is an append-only batch log in SQLite.
// Uses WAL mode for concurrent read access.
type Journal struct {
	db  *sql.DB
	ids IDGenerator
	log *zap.Logger
}

// Option configures a Journal.
type Option func(*Journal)

// WithIDGenerator sets the batch ID generator. The default is UUIDv7.
func WithIDGenerator(g IDGenerator) Option {
	return func(j *Journal) {
		if g != nil {
			j.ids = g
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(j *Journal) {
		if l != nil {
			j.log = l
		}
	}
}

// Open creates or opens a journal at path.
// Applies required pragmas and the schema; safe to call repeatedly.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	j := &Journal{db: db, ids: UUIDv7Generator{}, log: zap.NewNop()}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Append records d as the next batch and returns it.
// The batch and its facts are written in one transaction.
func (j *Journal) Append(ctx context.Context, d engine.Delta) (Batch, error) {
	if d.Empty() {
		return Batch{}, ErrEmptyBatch
	}
	sum, err := ir.BatchChecksum(d.Added, d.Retracted)
	if err != nil {
		return Batch{}, fmt.Errorf("append batch: %w", err)
	}
	b := Batch{
		ID:        j.ids.Generate(),
		Checksum:  sum,
		Added:     d.Added,
		Retracted: d.Retracted,
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Batch{}, fmt.Errorf("append batch: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM batches`).Scan(&b.Seq); err != nil {
		return Batch{}, fmt.Errorf("append batch: next seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO batches (id, seq, checksum, added_count, retracted_count)
		VALUES (?, ?, ?, ?, ?)
	`, b.ID, b.Seq, b.Checksum, len(b.Added), len(b.Retracted)); err != nil {
		return Batch{}, fmt.Errorf("append batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO batch_facts (batch_id, ordinal, op, predicate, args)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Batch{}, fmt.Errorf("append batch: %w", err)
	}
	defer stmt.Close()

	ordinal := 0
	for _, group := range []struct {
		op    string
		facts []ir.Fact
	}{{"-", b.Retracted}, {"+", b.Added}} {
		for _, f := range group.facts {
			args, err := ir.MarshalTuple(f.Args)
			if err != nil {
				return Batch{}, fmt.Errorf("append batch: fact %s: %w", f, err)
			}
			if _, err := stmt.ExecContext(ctx, b.ID, ordinal, group.op, f.Predicate, string(args)); err != nil {
				return Batch{}, fmt.Errorf("append batch: %w", err)
			}
			ordinal++
		}
	}

	if err := tx.Commit(); err != nil {
		return Batch{}, fmt.Errorf("append batch: commit: %w", err)
	}
	j.log.Debug("batch appended",
		zap.String("batch_id", b.ID),
		zap.Int64("seq", b.Seq),
		zap.Int("added", len(b.Added)),
		zap.Int("retracted", len(b.Retracted)),
	)
	return b, nil
}

// Batches returns every batch in seq order. Checksums are not verified.
func (j *Journal) Batches(ctx context.Context) ([]Batch, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, seq, checksum FROM batches ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.Seq, &b.Checksum); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	rows.Close()

	// One connection: batch rows must be closed before reading facts.
	for i := range batches {
		if err := j.readFacts(ctx, &batches[i]); err != nil {
			return nil, err
		}
	}
	return batches, nil
}

func (j *Journal) readFacts(ctx context.Context, b *Batch) error {
	rows, err := j.db.QueryContext(ctx, `
		SELECT op, predicate, args FROM batch_facts
		WHERE batch_id = ?
		ORDER BY ordinal ASC
	`, b.ID)
	if err != nil {
		return fmt.Errorf("query facts of batch %s: %w", b.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var op, pred, args string
		if err := rows.Scan(&op, &pred, &args); err != nil {
			return fmt.Errorf("scan fact of batch %s: %w", b.ID, err)
		}
		t, err := ir.UnmarshalTuple([]byte(args))
		if err != nil {
			return fmt.Errorf("batch %s: fact %s: %w", b.ID, pred, err)
		}
		f := ir.Fact{Predicate: pred, Args: t}
		switch op {
		case "+":
			b.Added = append(b.Added, f)
		case "-":
			b.Retracted = append(b.Retracted, f)
		default:
			return fmt.Errorf("batch %s: unknown op %q", b.ID, op)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate facts of batch %s: %w", b.ID, err)
	}
	return nil
}

// Verify recomputes the checksum of b.
func (b Batch) Verify() error {
	got, err := ir.BatchChecksum(b.Added, b.Retracted)
	if err != nil {
		return err
	}
	if got != b.Checksum {
		return &ChecksumMismatchError{BatchID: b.ID, Seq: b.Seq, Want: b.Checksum, Got: got}
	}
	return nil
}

// Replay verifies every batch and then applies them to a in seq order.
// Nothing is applied if any checksum fails. It returns the number of
// batches applied; on an apply error, batches before the failing one
// remain applied.
func (j *Journal) Replay(ctx context.Context, a Applier) (int, error) {
	batches, err := j.Batches(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range batches {
		if err := b.Verify(); err != nil {
			return 0, err
		}
	}
	for i, b := range batches {
		if _, err := a.ApplyDelta(ctx, b.Delta()); err != nil {
			return i, fmt.Errorf("replay batch %s (seq %d): %w", b.ID, b.Seq, err)
		}
		j.log.Debug("batch replayed", zap.String("batch_id", b.ID), zap.Int64("seq", b.Seq))
	}
	return len(batches), nil
}
