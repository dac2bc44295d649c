package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cinesphere/internal/models"
	"cinesphere/internal/stream"
)

// Collection names.
const (
	ProfilesCollection  = "profiles"
	WatchlistCollection = "watchlist"
)

const (
	changeStreamRetryDelay = 2 * time.Second
	toggleAttempts         = 3
)

var errToggleContended = errors.New("watchlist entry changed concurrently")

type profileDoc struct {
	UserID             string `bson:"_id"`
	models.UserProfile `bson:",inline"`
}

// Watchlist documents use "<uid>:<movieId>" as _id so delete events still identify the user.
type watchlistDoc struct {
	ID                    string `bson:"_id"`
	UserID                string `bson:"user_id"`
	models.WatchlistEntry `bson:",inline"`
}

func watchlistKey(uid string, movieID int) string {
	return uid + ":" + strconv.Itoa(movieID)
}

func userFromWatchlistKey(key string) string {
	i := strings.LastIndex(key, ":")
	if i <= 0 {
		return ""
	}
	return key[:i]
}

// MongoStore keeps profiles and watchlists in MongoDB and uses change streams for subscriptions.
type MongoStore struct {
	profilesColl  *mongo.Collection
	watchlistColl *mongo.Collection
	snapshots

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMongoStore creates a store on db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		profilesColl:  db.Collection(ProfilesCollection),
		watchlistColl: db.Collection(WatchlistCollection),
		snapshots:     newSnapshots(),
	}
}

// EnsureIndexes creates the watchlist indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "movie_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := s.watchlistColl.Indexes().CreateOne(ctx, idx); err != nil {
		return fmt.Errorf("failed to create watchlist index: %w", err)
	}
	return nil
}

// GetProfile returns the stored profile for uid.
func (s *MongoStore) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	var doc profileDoc
	err := s.profilesColl.FindOne(ctx, bson.M{"_id": uid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if doc.FavoriteGenres == nil {
		doc.FavoriteGenres = []string{}
	}
	return &doc.UserProfile, nil
}

// PutProfile replaces the profile for uid.
func (s *MongoStore) PutProfile(ctx context.Context, uid string, p models.UserProfile) error {
	if p.FavoriteGenres == nil {
		p.FavoriteGenres = []string{}
	}
	_, err := s.profilesColl.ReplaceOne(ctx, bson.M{"_id": uid},
		profileDoc{UserID: uid, UserProfile: p}, options.Replace().SetUpsert(true))
	if err != nil {
		return writeErr(OpPutProfile, uid, err)
	}
	return nil
}

// ListWatchlist returns all entries for uid, newest first.
func (s *MongoStore) ListWatchlist(ctx context.Context, uid string) ([]models.WatchlistEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "movie_id", Value: 1}})
	cursor, err := s.watchlistColl.Find(ctx, bson.M{"user_id": uid}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []models.WatchlistEntry{}
	for cursor.Next(ctx) {
		var doc watchlistDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode watchlist entry: %w", err)
		}
		entries = append(entries, doc.WatchlistEntry)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to read watchlist: %w", err)
	}
	return entries, nil
}

// PutWatchlistEntry upserts the entry keyed by its movie id.
func (s *MongoStore) PutWatchlistEntry(ctx context.Context, uid string, e models.WatchlistEntry) error {
	key := watchlistKey(uid, e.MovieID)
	doc := watchlistDoc{ID: key, UserID: uid, WatchlistEntry: e}
	_, err := s.watchlistColl.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return writeErr(OpPutWatchlist, uid, err)
	}
	return nil
}

// DeleteWatchlistEntry removes movieID from the watchlist. Missing entries are not an error.
func (s *MongoStore) DeleteWatchlistEntry(ctx context.Context, uid string, movieID int) error {
	if _, err := s.watchlistColl.DeleteOne(ctx, bson.M{"_id": watchlistKey(uid, movieID)}); err != nil {
		return writeErr(OpDeleteWatched, uid, err)
	}
	return nil
}

// ToggleWatchlistEntry removes the entry when it is stored with e.Status, otherwise stores e.
// Each step is a single conditional write; a lost insert race retries from the delete.
func (s *MongoStore) ToggleWatchlistEntry(ctx context.Context, uid string, e models.WatchlistEntry) (bool, error) {
	key := watchlistKey(uid, e.MovieID)
	doc := watchlistDoc{ID: key, UserID: uid, WatchlistEntry: e}
	for attempt := 0; attempt < toggleAttempts; attempt++ {
		del, err := s.watchlistColl.DeleteOne(ctx, bson.M{"_id": key, "status": e.Status})
		if err != nil {
			return false, writeErr(OpToggleWatched, uid, err)
		}
		if del.DeletedCount > 0 {
			return true, nil
		}

		upd, err := s.watchlistColl.ReplaceOne(ctx, bson.M{"_id": key, "status": bson.M{"$ne": e.Status}}, doc)
		if err != nil {
			return false, writeErr(OpToggleWatched, uid, err)
		}
		if upd.MatchedCount > 0 {
			return false, nil
		}

		_, err = s.watchlistColl.InsertOne(ctx, doc)
		if err == nil {
			return false, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return false, writeErr(OpToggleWatched, uid, err)
		}
	}
	return false, writeErr(OpToggleWatched, uid, errToggleContended)
}

// WatchProfile subscribes to profile snapshots for uid.
func (s *MongoStore) WatchProfile(ctx context.Context, uid string) (*stream.Subscription[models.UserProfile], error) {
	return subscribe(ctx, s.profiles, uid, profileLoader(s.GetProfile))
}

// WatchWatchlist subscribes to watchlist snapshots for uid.
func (s *MongoStore) WatchWatchlist(ctx context.Context, uid string) (*stream.Subscription[[]models.WatchlistEntry], error) {
	return subscribe(ctx, s.watchlist, uid, s.ListWatchlist)
}

// Listen starts change stream watchers on both collections. Change streams require a replica set.
func (s *MongoStore) Listen(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.watchCollection(ctx, s.profilesColl, func(id string) {
			refresh(ctx, s.profiles, id, profileLoader(s.GetProfile))
		}, func() {
			for _, uid := range s.profiles.Keys() {
				refresh(ctx, s.profiles, uid, profileLoader(s.GetProfile))
			}
		})
	}()
	go func() {
		defer s.wg.Done()
		s.watchCollection(ctx, s.watchlistColl, func(id string) {
			if uid := userFromWatchlistKey(id); uid != "" {
				refresh(ctx, s.watchlist, uid, s.ListWatchlist)
			}
		}, func() {
			for _, uid := range s.watchlist.Keys() {
				refresh(ctx, s.watchlist, uid, s.ListWatchlist)
			}
		})
	}()
}

type changeEvent struct {
	DocumentKey struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// watchCollection follows coll's change stream until ctx ends, reopening it after errors.
// onReopen runs after every reopen since changes may have been missed in between.
func (s *MongoStore) watchCollection(ctx context.Context, coll *mongo.Collection, onChange func(id string), onReopen func()) {
	first := true
	for ctx.Err() == nil {
		cs, err := coll.Watch(ctx, mongo.Pipeline{})
		if err != nil {
			slog.Warn("failed to open change stream", "collection", coll.Name(), "error", err)
			if !sleepCtx(ctx, changeStreamRetryDelay) {
				return
			}
			continue
		}
		if !first {
			onReopen()
		}
		first = false

		for cs.Next(ctx) {
			var ev changeEvent
			if err := cs.Decode(&ev); err != nil {
				slog.Warn("failed to decode change event", "collection", coll.Name(), "error", err)
				continue
			}
			onChange(ev.DocumentKey.ID)
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			slog.Warn("change stream interrupted", "collection", coll.Name(), "error", err)
		}
		cs.Close(context.Background())
		if !sleepCtx(ctx, changeStreamRetryDelay) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Close stops the change stream watchers and cancels every subscription.
// The mongo client is owned by the caller.
func (s *MongoStore) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.snapshots.close()
	return nil
}
