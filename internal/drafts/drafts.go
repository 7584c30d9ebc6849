// Package drafts persists a single draft string per conversation, the only
// offline state the engine keeps. The database is opened lazily and created
// on first use. If opening the DB or executing queries fails, the package
// falls back to in-memory storage.
package drafts

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"

	"github.com/grimoire/grimoire-go/internal/logger"
)

// Store keeps one draft string per conversation id.
type Store struct {
	path string

	mu  sync.Mutex
	mem map[string]string // in-memory fallback

	dbOnce  sync.Once
	db      *sql.DB
	initErr error
}

// NewStore creates a store backed by the SQLite file at path.
func NewStore(path string) *Store {
	return &Store{path: path, mem: make(map[string]string)}
}

func (s *Store) initDB() {
	var err error
	s.db, err = sql.Open("sqlite", "file:"+s.path+"?_busy_timeout=10000")
	if err != nil {
		s.initErr = err
		logger.L.Warn("sqlite open failed; using in-memory drafts", "error", err)
		return
	}
	if _, err = s.db.Exec(`CREATE TABLE IF NOT EXISTS drafts (
        conversation_id TEXT PRIMARY KEY,
        text TEXT,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );`); err != nil {
		s.initErr = err
		logger.L.Warn("sqlite table creation failed; using in-memory drafts", "error", err)
		return
	}
	logger.L.Info("drafts DB initialized", "path", s.path)
}

// Save stores the draft for a conversation, replacing any previous one. An
// empty text clears the draft.
func (s *Store) Save(conversationID, text string) {
	if text == "" {
		s.Clear(conversationID)
		return
	}
	s.dbOnce.Do(s.initDB)

	if s.initErr == nil && s.db != nil {
		_, err := s.db.Exec(`INSERT INTO drafts (conversation_id, text) VALUES (?,?)
            ON CONFLICT(conversation_id) DO UPDATE SET text=excluded.text, updated_at=CURRENT_TIMESTAMP;`,
			conversationID, text)
		if err != nil {
			logger.L.Error("failed to store draft in sqlite; falling back to memory", "error", err)
		}
	}

	s.mu.Lock()
	s.mem[conversationID] = text
	s.mu.Unlock()
}

// Load returns the draft for a conversation, or "" when none exists.
func (s *Store) Load(conversationID string) string {
	s.dbOnce.Do(s.initDB)

	if s.initErr == nil && s.db != nil {
		var text string
		err := s.db.QueryRow(`SELECT text FROM drafts WHERE conversation_id = ?;`, conversationID).Scan(&text)
		if err == nil {
			return text
		}
		if err != sql.ErrNoRows {
			logger.L.Warn("draft query failed; falling back to memory", "error", err)
		} else {
			return ""
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem[conversationID]
}

// Clear removes the draft for a conversation.
func (s *Store) Clear(conversationID string) {
	s.dbOnce.Do(s.initDB)

	if s.initErr == nil && s.db != nil {
		if _, err := s.db.Exec(`DELETE FROM drafts WHERE conversation_id = ?;`, conversationID); err != nil {
			logger.L.Warn("draft delete failed", "error", err)
		}
	}

	s.mu.Lock()
	delete(s.mem, conversationID)
	s.mu.Unlock()
}
