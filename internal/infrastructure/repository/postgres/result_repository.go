package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

// ResultRepository stores assembled document results as JSONB payloads with
// the status and type columns broken out for operational queries.
type ResultRepository struct {
	db *sql.DB
}

var (
	_ ports.ResultStore   = (*ResultRepository)(nil)
	_ ports.ResultCounter = (*ResultRepository)(nil)
)

func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ResultRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS document_results (
	document_id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	document_type TEXT NOT NULL,
	processing_status TEXT NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_results_status ON document_results(processing_status);
CREATE INDEX IF NOT EXISTS idx_document_results_created_at ON document_results(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save upserts the result; a redelivered job replaces the earlier attempt.
func (r *ResultRepository) Save(ctx context.Context, result *domain.DocumentResult) error {
	if result == nil || result.DocumentID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "save document result", errors.New("document id is required"))
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal document result: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO document_results (
	document_id, filename, document_type, processing_status, payload, created_at
) VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (document_id) DO UPDATE SET
	filename = EXCLUDED.filename,
	document_type = EXCLUDED.document_type,
	processing_status = EXCLUDED.processing_status,
	payload = EXCLUDED.payload,
	created_at = EXCLUDED.created_at
`,
		result.DocumentID, result.Filename, string(result.Classification.Type),
		string(result.ProcessingStatus), payload, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert document result: %w", err)
	}
	return nil
}

func (r *ResultRepository) GetByID(ctx context.Context, documentID string) (*domain.DocumentResult, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT payload
FROM document_results
WHERE document_id = $1
`, documentID)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document result", fmt.Errorf("id=%s", documentID))
		}
		return nil, fmt.Errorf("scan document result: %w", err)
	}

	var result domain.DocumentResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal document result: %w", err)
	}
	if result.Metadata == nil {
		result.Metadata = map[string]domain.MetadataField{}
	}
	if result.ActionableItems == nil {
		result.ActionableItems = []domain.ActionableItem{}
	}
	return &result, nil
}

// CountByStatus reports stored results per processing status.
func (r *ResultRepository) CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT processing_status, COUNT(*)
FROM document_results
GROUP BY processing_status
`)
	if err != nil {
		return nil, fmt.Errorf("count document results: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ProcessingStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[domain.ProcessingStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return out, nil
}
