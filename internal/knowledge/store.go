package knowledge

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"deskfix/internal/types"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// KeywordBoost is the fixed score bonus added to candidates whose indexed
// text contains a category-derived keyword, applied before truncation to K.
const KeywordBoost = 0.15

// DefaultTopK is the ranked match count returned by Search.
const DefaultTopK = 5

// Store is the sqlite-backed knowledge base. It supports a "not ready" state
// (no corpus indexed) in which Search returns empty without failing callers.
// Read operations are safe for concurrent use across pipeline runs.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	engine Engine
	logger *zap.Logger
}

// NewStore opens (creating if needed) the knowledge database at path.
func NewStore(path string, engine Engine, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge database: %w", err)
	}

	s := &Store{db: db, engine: engine, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kb_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		issue TEXT NOT NULL,
		response TEXT NOT NULL,
		category TEXT,
		status TEXT,
		resolution_time TEXT,
		embedding TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS kb_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize knowledge schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ready reports whether a corpus has been indexed. Callers should skip
// knowledge retrieval when the store is not ready.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM kb_entries").Scan(&count); err != nil {
		return false
	}
	return count > 0
}

// corpusRow is one record of the support ticket CSV.
type corpusRow struct {
	conversationID string
	issue          string
	response       string
	category       string
	status         string
	resolutionTime string
}

// document is the text indexed for similarity search, mirroring the corpus
// ingestion format of the original dataset.
func (r corpusRow) document() string {
	return strings.Join([]string{r.issue, r.response, r.category, r.status}, " | ")
}

// IndexCSV ingests the support ticket corpus and reports how many rows were
// indexed. The CSV hash is stored so an unchanged corpus is not re-embedded
// (reported as zero rows); pass force to rebuild regardless.
func (s *Store) IndexCSV(ctx context.Context, csvPath string, force bool) (int, error) {
	hash, err := hashFile(csvPath)
	if err != nil {
		return 0, fmt.Errorf("failed to hash corpus: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !force {
		var stored string
		err := s.db.QueryRow("SELECT value FROM kb_meta WHERE key = 'corpus_hash'").Scan(&stored)
		if err == nil && stored == hash {
			s.logger.Info("knowledge corpus unchanged; skipping re-index",
				zap.String("path", csvPath))
			return 0, nil
		}
	}

	rows, err := readCorpus(csvPath)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("corpus %s contains no rows", csvPath)
	}

	docs := make([]string, len(rows))
	for i, row := range rows {
		docs[i] = row.document()
	}
	vecs, err := s.engine.EmbedBatch(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("failed to embed corpus: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM kb_entries"); err != nil {
		return 0, err
	}
	for i, row := range rows {
		embJSON, err := json.Marshal(vecs[i])
		if err != nil {
			return 0, err
		}
		_, err = tx.Exec(
			`INSERT INTO kb_entries
			 (conversation_id, issue, response, category, status, resolution_time, embedding)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			row.conversationID, row.issue, row.response,
			row.category, row.status, row.resolutionTime, string(embJSON),
		)
		if err != nil {
			return 0, err
		}
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO kb_meta (key, value) VALUES ('corpus_hash', ?)", hash,
	); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.logger.Info("knowledge corpus indexed",
		zap.String("path", csvPath),
		zap.Int("entries", len(rows)),
		zap.String("engine", s.engine.Name()))
	return len(rows), nil
}

// Search returns up to topK matches ranked descending by cosine similarity.
// Candidates whose indexed text contains any keyword get KeywordBoost added
// before ranking; ties keep original corpus order. A not-ready store returns
// nil without error.
func (s *Store) Search(ctx context.Context, query string, topK int, keywords []string) ([]types.KnowledgeMatch, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT conversation_id, issue, response, category, status, resolution_time, embedding
		 FROM kb_entries ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []types.KnowledgeMatch
	for rows.Next() {
		var m types.KnowledgeMatch
		var embJSON string
		if err := rows.Scan(&m.ConversationID, &m.Issue, &m.Response,
			&m.Category, &m.Status, &m.ResolutionTime, &embJSON); err != nil {
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
			continue
		}
		score, err := CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}

		if len(lowered) > 0 {
			haystack := strings.ToLower(m.Issue + " " + m.Response + " " + m.Category)
			for _, kw := range lowered {
				if strings.Contains(haystack, kw) {
					score += KeywordBoost
					break
				}
			}
		}

		m.Score = score
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Stable sort keeps corpus order for equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// readCorpus parses the ticket CSV. Expected columns: Conversation_ID,
// Customer_Issue, Tech_Response, Issue_Category, Issue_Status,
// Resolution_Time. Unknown columns are ignored.
func readCorpus(path string) ([]corpusRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var out []corpusRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus row: %w", err)
		}
		out = append(out, corpusRow{
			conversationID: field(record, "Conversation_ID"),
			issue:          field(record, "Customer_Issue"),
			response:       field(record, "Tech_Response"),
			category:       field(record, "Issue_Category"),
			status:         field(record, "Issue_Status"),
			resolutionTime: field(record, "Resolution_Time"),
		})
	}
	return out, nil
}

// hashFile returns the hex SHA-256 of the file contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
