package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/agenthands/ctigraph/internal/core/model"
)

func init() {
	sqlite_vec.Auto()
}

var ErrReportNotFound = errors.New("report not found")

// Store keeps report chunks and their embeddings in SQLite.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) the database at dbPath. ":memory:" is accepted for tests.
func New(dbPath string, embeddingDim int) (*Store, error) {
	if embeddingDim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim)
	}

	dsn := ":memory:?_foreign_keys=on"
	inMemory := dbPath == ":memory:"
	if !inMemory {
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating db directory: %w", err)
			}
		}
		dsn = dbPath + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if inMemory {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, embeddingDim: embeddingDim}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// AddReport stores a report and its embedded chunks in one transaction.
func (s *Store) AddReport(ctx context.Context, report model.Report, chunks []model.Chunk) error {
	for i, c := range chunks {
		if len(c.Embedding) != s.embeddingDim {
			return fmt.Errorf("chunk %d: embedding has %d dimensions, store expects %d", i, len(c.Embedding), s.embeddingDim)
		}
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO reports (id, name, format, created_at) VALUES (?, ?, ?, ?)",
			report.ID, report.Name, report.Format, report.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("inserting report: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (report_id, position, page_number, heading, content, token_count, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range chunks {
			if _, err := stmt.ExecContext(ctx, report.ID, c.Position, c.PageNumber, c.Heading,
				c.Content, c.TokenCount, serializeFloat32(c.Embedding)); err != nil {
				return fmt.Errorf("inserting chunk %d: %w", c.Position, err)
			}
		}
		return nil
	})
}

func (s *Store) GetReport(ctx context.Context, id string) (*model.Report, error) {
	r := &model.Report{}
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.name, r.format, r.created_at, COUNT(c.id)
		FROM reports r LEFT JOIN chunks c ON c.report_id = r.id
		WHERE r.id = ?
		GROUP BY r.id
	`, id).Scan(&r.ID, &r.Name, &r.Format, &createdAt, &r.Chunks)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return r, nil
}

// ReportText returns the chunk contents of a report in document order.
func (s *Store) ReportText(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT content FROM chunks WHERE report_id = ? ORDER BY position", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

func (s *Store) DeleteReport(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE report_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM reports WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrReportNotFound
		}
		return nil
	})
}

// VectorSearch returns the k chunks of a report closest to the query embedding.
func (s *Store) VectorSearch(ctx context.Context, reportID string, queryEmbedding []float32, k int) ([]model.SearchResult, error) {
	if len(queryEmbedding) != s.embeddingDim {
		return nil, fmt.Errorf("query embedding has %d dimensions, store expects %d", len(queryEmbedding), s.embeddingDim)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, report_id, position, content, heading, vec_distance_cosine(embedding, ?) AS distance
		FROM chunks
		WHERE report_id = ?
		ORDER BY distance, position
		LIMIT ?
	`, serializeFloat32(queryEmbedding), reportID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.SearchResult
	for rows.Next() {
		var r model.SearchResult
		var heading sql.NullString
		var distance float64
		if err := rows.Scan(&r.ChunkID, &r.ReportID, &r.Position, &r.Content, &heading, &distance); err != nil {
			return nil, err
		}
		r.Heading = heading.String
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
