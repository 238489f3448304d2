package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// DBFileName is the database file inside the data directory.
const DBFileName = "docchat.db"

// Store is a SQLite database exposing the document and index stores.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database in dataDir and runs migrations.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore backed by this database.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// IndexStore returns an IndexStore backed by this database.
func (s *Store) IndexStore() driven.IndexStore {
	return &indexStore{store: s}
}

// migrate applies pending up migrations in version order, recording each.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" is version 1.
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.inTx(context.Background(), func(tx *sql.Tx) error {
			if _, err := tx.Exec(string(content)); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version)
			return err
		}); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ==================== Document Store ====================

type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = "id, filename, title, mime_type, pages, content, metadata, created_at"

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			title = excluded.title,
			mime_type = excluded.mime_type,
			pages = excluded.pages,
			content = excluded.content,
			metadata = excluded.metadata
	`, doc.ID, doc.Filename, doc.Title, doc.MIMEType, doc.Pages, doc.Content,
		string(metadataJSON), doc.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// DeleteDocument removes a document. Missing documents are not an error.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ListDocuments returns all documents, oldest first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON string

	if err := row.Scan(&doc.ID, &doc.Filename, &doc.Title, &doc.MIMEType, &doc.Pages,
		&doc.Content, &metadataJSON, &doc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}
	return &doc, nil
}

// ==================== Index Store ====================

type indexStore struct {
	store *Store
}

var _ driven.IndexStore = (*indexStore)(nil)

// SaveIndex replaces the record and its chunks in one transaction.
func (s *indexStore) SaveIndex(ctx context.Context, rec *domain.IndexRecord) error {
	return s.store.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM document_indexes WHERE document_id = ?", rec.DocumentID); err != nil {
			return fmt.Errorf("clearing index: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO document_indexes
				(document_id, embedding_type, model, dimensions, chunk_size, chunk_overlap, chunk_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.DocumentID, string(rec.EmbeddingType), rec.Model, rec.Dimensions,
			rec.ChunkSize, rec.Overlap, len(rec.Chunks), rec.UpdatedAt.UTC()); err != nil {
			return fmt.Errorf("saving index: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			"INSERT INTO index_chunks (document_id, position, content, embedding) VALUES (?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("preparing chunk insert: %w", err)
		}
		defer stmt.Close()

		for _, chunk := range rec.Chunks {
			if _, err := stmt.ExecContext(ctx, rec.DocumentID, chunk.Index, chunk.Content,
				float32SliceToBytes(chunk.Embedding)); err != nil {
				return fmt.Errorf("saving chunk %d: %w", chunk.Index, err)
			}
		}
		return nil
	})
}

// LoadIndex reads a record. Rows that disagree with the record header are
// reported as domain.ErrIndexCorrupt.
func (s *indexStore) LoadIndex(ctx context.Context, documentID string) (*domain.IndexRecord, error) {
	var (
		rec           domain.IndexRecord
		embeddingType string
		chunkCount    int
	)
	err := s.store.db.QueryRowContext(ctx, `
		SELECT document_id, embedding_type, model, dimensions, chunk_size, chunk_overlap, chunk_count, updated_at
		FROM document_indexes WHERE document_id = ?
	`, documentID).Scan(&rec.DocumentID, &embeddingType, &rec.Model, &rec.Dimensions,
		&rec.ChunkSize, &rec.Overlap, &chunkCount, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}
	rec.EmbeddingType = domain.EmbeddingType(embeddingType)
	if !rec.EmbeddingType.IsValid() {
		return nil, fmt.Errorf("%w: unknown embedding type %q", domain.ErrIndexCorrupt, embeddingType)
	}

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT position, content, embedding FROM index_chunks WHERE document_id = ? ORDER BY position",
		documentID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	defer rows.Close()

	rec.Chunks = make([]domain.Chunk, 0, chunkCount)
	for rows.Next() {
		var (
			chunk domain.Chunk
			blob  []byte
		)
		if err := rows.Scan(&chunk.Index, &chunk.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if chunk.Index != len(rec.Chunks) {
			return nil, fmt.Errorf("%w: chunk %d out of sequence", domain.ErrIndexCorrupt, chunk.Index)
		}
		if len(blob)%4 != 0 || (rec.Dimensions > 0 && len(blob)/4 != rec.Dimensions) {
			return nil, fmt.Errorf("%w: chunk %d has %d bytes of vector data", domain.ErrIndexCorrupt, chunk.Index, len(blob))
		}
		chunk.DocumentID = documentID
		chunk.Embedding = bytesToFloat32Slice(blob)
		rec.Chunks = append(rec.Chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading chunks: %w", err)
	}
	if len(rec.Chunks) != chunkCount {
		return nil, fmt.Errorf("%w: expected %d chunks, found %d", domain.ErrIndexCorrupt, chunkCount, len(rec.Chunks))
	}
	return &rec, nil
}

// DeleteIndex removes a record; its chunks cascade.
func (s *indexStore) DeleteIndex(ctx context.Context, documentID string) error {
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM document_indexes WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes encodes vectors as little-endian float32s.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice decodes float32SliceToBytes output.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

