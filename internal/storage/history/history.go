package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sandevgo/packrat/internal/core"
	"github.com/sandevgo/packrat/internal/storage/trash"
	"github.com/sandevgo/packrat/pkg/log"
)

const filePrefix = "chat_"

// Store keeps one JSON file per chat session. Sessions are written whole and
// immutable afterwards; purging routes through the trash store instead of
// unlinking.
type Store struct {
	dir   string
	trash *trash.Store
}

func NewStore(dir string, tr *trash.Store) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &Store{dir: dir, trash: tr}, nil
}

// SaveSession writes a full session file and returns the stored session with
// its generated id.
func (s *Store) SaveSession(ctx context.Context, messages []core.Message, meta map[string]any) (*core.ChatSession, error) {
	now := time.Now().UTC()
	session := &core.ChatSession{
		SessionID:    newSessionID(now),
		Timestamp:    now,
		Messages:     messages,
		Metadata:     meta,
		MessageCount: len(messages),
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	path := s.sessionPath(session.SessionID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write session: %w", err)
	}

	log.FromCtx(ctx).Info().
		Str("session", session.SessionID).
		Int("messages", session.MessageCount).
		Msg("session saved")
	return session, nil
}

// ListSessions returns saved sessions, newest first. days > 0 keeps only
// sessions from the last N days; limit > 0 truncates the result. Files that
// fail to parse are skipped with a warning, never failing the listing.
func (s *Store) ListSessions(ctx context.Context, limit, days int) ([]core.ChatSession, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to glob sessions: %w", err)
	}

	var cutoff time.Time
	if days > 0 {
		cutoff = time.Now().UTC().AddDate(0, 0, -days)
	}

	var sessions []core.ChatSession
	for _, p := range paths {
		session, err := readSession(p)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("path", p).Msg("skipping unparseable session file")
			continue
		}
		if days > 0 && session.Timestamp.Before(cutoff) {
			continue
		}
		sessions = append(sessions, *session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Timestamp.After(sessions[j].Timestamp)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// PurgeOldSessions moves session files older than the cutoff into the trash
// as one logical item. dryRun reports the would-purge set without touching
// anything. Unparseable files are skipped silently.
func (s *Store) PurgeOldSessions(ctx context.Context, days int, dryRun bool) (int, []string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*.json"))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to glob sessions: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var eligible []string
	for _, p := range paths {
		session, err := readSession(p)
		if err != nil {
			continue
		}
		if session.Timestamp.Before(cutoff) {
			eligible = append(eligible, p)
		}
	}

	if dryRun || len(eligible) == 0 {
		return len(eligible), eligible, nil
	}

	itemName := fmt.Sprintf("sessions_older_%dd", days)
	if _, err := s.trash.MoveToTrash(ctx, trash.ItemChatHistory, itemName, eligible, map[string]any{
		"purged_count": len(eligible),
	}); err != nil {
		return 0, nil, fmt.Errorf("failed to move sessions to trash: %w", err)
	}
	return len(eligible), eligible, nil
}

func (s *Store) sessionPath(sessionID string) string {
	return filepath.Join(s.dir, filePrefix+sessionID+".json")
}

func readSession(path string) (*core.ChatSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var session core.ChatSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// newSessionID is wall clock time at microsecond resolution.
func newSessionID(t time.Time) string {
	return fmt.Sprintf("%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/1000)
}
