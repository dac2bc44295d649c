package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"cinesphere/internal/models"
	"cinesphere/internal/stream"
)

// NotifyChannel is the Postgres channel carrying "<kind>:<uid>" change payloads.
const NotifyChannel = "cinesphere_changes"

// PostgresStore keeps profiles and watchlists in Postgres and uses LISTEN/NOTIFY for subscriptions.
type PostgresStore struct {
	db *sql.DB
	snapshots

	listener *pq.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewPostgresStore creates a store on db. Call Listen to enable change subscriptions.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, snapshots: newSnapshots()}
}

// GetProfile returns the stored profile for uid.
func (s *PostgresStore) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT name, favorite_genres, age_safe FROM user_profiles WHERE user_id = $1
	`, uid).Scan(&p.Name, pq.Array(&p.FavoriteGenres), &p.AgeSafe)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if p.FavoriteGenres == nil {
		p.FavoriteGenres = []string{}
	}
	return &p, nil
}

// PutProfile replaces the profile for uid.
func (s *PostgresStore) PutProfile(ctx context.Context, uid string, p models.UserProfile) error {
	genres := p.FavoriteGenres
	if genres == nil {
		genres = []string{}
	}
	err := s.notifyTx(ctx, kindProfile, uid, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_profiles (user_id, name, favorite_genres, age_safe, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				name = EXCLUDED.name,
				favorite_genres = EXCLUDED.favorite_genres,
				age_safe = EXCLUDED.age_safe,
				updated_at = NOW()
		`, uid, p.Name, pq.Array(genres), p.AgeSafe)
		return err
	})
	if err != nil {
		return writeErr(OpPutProfile, uid, err)
	}
	return nil
}

// ListWatchlist returns all entries for uid, newest first.
func (s *PostgresStore) ListWatchlist(ctx context.Context, uid string) ([]models.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT movie_id, title, poster, status, created_at
		FROM watchlist_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, movie_id
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	entries := []models.WatchlistEntry{}
	for rows.Next() {
		var e models.WatchlistEntry
		if err := rows.Scan(&e.MovieID, &e.Title, &e.Poster, &e.Status, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read watchlist: %w", err)
	}
	return entries, nil
}

// PutWatchlistEntry upserts the entry keyed by its movie id.
func (s *PostgresStore) PutWatchlistEntry(ctx context.Context, uid string, e models.WatchlistEntry) error {
	err := s.notifyTx(ctx, kindWatchlist, uid, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO watchlist_entries (user_id, movie_id, title, poster, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, movie_id) DO UPDATE SET
				title = EXCLUDED.title,
				poster = EXCLUDED.poster,
				status = EXCLUDED.status,
				created_at = EXCLUDED.created_at
		`, uid, e.MovieID, e.Title, e.Poster, e.Status, e.Timestamp)
		return err
	})
	if err != nil {
		return writeErr(OpPutWatchlist, uid, err)
	}
	return nil
}

// DeleteWatchlistEntry removes movieID from the watchlist. Missing entries are not an error.
func (s *PostgresStore) DeleteWatchlistEntry(ctx context.Context, uid string, movieID int) error {
	err := s.notifyTx(ctx, kindWatchlist, uid, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM watchlist_entries WHERE user_id = $1 AND movie_id = $2
		`, uid, movieID)
		return err
	})
	if err != nil {
		return writeErr(OpDeleteWatched, uid, err)
	}
	return nil
}

// ToggleWatchlistEntry removes the entry when it is stored with e.Status, otherwise upserts e.
// A transaction-scoped advisory lock on (user, movie) serializes concurrent toggles.
func (s *PostgresStore) ToggleWatchlistEntry(ctx context.Context, uid string, e models.WatchlistEntry) (bool, error) {
	var removed bool
	err := s.notifyTx(ctx, kindWatchlist, uid, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), $2)`, uid, e.MovieID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			DELETE FROM watchlist_entries WHERE user_id = $1 AND movie_id = $2 AND status = $3
		`, uid, e.MovieID, e.Status)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if removed = n > 0; removed {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO watchlist_entries (user_id, movie_id, title, poster, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, movie_id) DO UPDATE SET
				title = EXCLUDED.title,
				poster = EXCLUDED.poster,
				status = EXCLUDED.status,
				created_at = EXCLUDED.created_at
		`, uid, e.MovieID, e.Title, e.Poster, e.Status, e.Timestamp)
		return err
	})
	if err != nil {
		return false, writeErr(OpToggleWatched, uid, err)
	}
	return removed, nil
}

// notifyTx runs write and pg_notify in one transaction so listeners only hear about committed changes.
func (s *PostgresStore) notifyTx(ctx context.Context, kind, uid string, write func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := write(tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, kind+":"+uid); err != nil {
		return err
	}
	return tx.Commit()
}

// WatchProfile subscribes to profile snapshots for uid.
func (s *PostgresStore) WatchProfile(ctx context.Context, uid string) (*stream.Subscription[models.UserProfile], error) {
	return subscribe(ctx, s.profiles, uid, profileLoader(s.GetProfile))
}

// WatchWatchlist subscribes to watchlist snapshots for uid.
func (s *PostgresStore) WatchWatchlist(ctx context.Context, uid string) (*stream.Subscription[[]models.WatchlistEntry], error) {
	return subscribe(ctx, s.watchlist, uid, s.ListWatchlist)
}

// Listen starts a LISTEN loop on NotifyChannel using a dedicated connection to dsn.
func (s *PostgresStore) Listen(ctx context.Context, dsn string) error {
	l := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Warn("postgres listener event", "event", ev, "error", err)
		}
	})
	if err := l.Listen(NotifyChannel); err != nil {
		l.Close()
		return fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.listener = l
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.listenLoop(ctx, l)
	}()
	slog.Info("listening for store changes", "channel", NotifyChannel)
	return nil
}

func (s *PostgresStore) listenLoop(ctx context.Context, l *pq.Listener) {
	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-l.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Connection was re-established; notifications may have been missed.
				s.refreshAll(ctx)
				continue
			}
			kind, uid, ok := parseNotification(n.Extra)
			if !ok {
				slog.Warn("ignoring malformed notification", "payload", n.Extra)
				continue
			}
			s.refresh(ctx, kind, uid)
		case <-ticker.C:
			go l.Ping()
		}
	}
}

func (s *PostgresStore) refresh(ctx context.Context, kind, uid string) {
	switch kind {
	case kindProfile:
		refresh(ctx, s.profiles, uid, profileLoader(s.GetProfile))
	case kindWatchlist:
		refresh(ctx, s.watchlist, uid, s.ListWatchlist)
	}
}

func (s *PostgresStore) refreshAll(ctx context.Context) {
	for _, uid := range s.profiles.Keys() {
		s.refresh(ctx, kindProfile, uid)
	}
	for _, uid := range s.watchlist.Keys() {
		s.refresh(ctx, kindWatchlist, uid)
	}
}

func parseNotification(payload string) (kind, uid string, ok bool) {
	kind, uid, ok = strings.Cut(payload, ":")
	if !ok || uid == "" || (kind != kindProfile && kind != kindWatchlist) {
		return "", "", false
	}
	return kind, uid, true
}

// Close stops the listener and cancels every subscription. The *sql.DB is owned by the caller.
func (s *PostgresStore) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.snapshots.close()
	return err
}
