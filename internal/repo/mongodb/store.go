package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/geocoder89/attendhub/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	eventsCollection = "events"
	usersCollection  = "users"
)

// Store keeps each side of the attendance relation as an id array on its
// document. With transactions enabled (replica set required) both sides are
// written in one session transaction; otherwise the second write is undone
// when it fails.
type Store struct {
	client *mongo.Client
	events *mongo.Collection
	users  *mongo.Collection
	tx     bool
	prom   *observability.Prom
}

type Config struct {
	URI          string
	Database     string
	Transactions bool
}

// Connect dials MongoDB and pings the primary.
func Connect(ctx context.Context, cfg Config, prom *observability.Prom) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return NewStore(client, cfg.Database, cfg.Transactions, prom), nil
}

func NewStore(client *mongo.Client, database string, transactions bool, prom *observability.Prom) *Store {
	db := client.Database(database)
	return &Store{
		client: client,
		events: db.Collection(eventsCollection),
		users:  db.Collection(usersCollection),
		tx:     transactions,
		prom:   prom,
	}
}

func (s *Store) Events() *EventsRepo { return &EventsRepo{s: s} }
func (s *Store) Users() *UsersRepo   { return &UsersRepo{s: s} }

// EnsureIndexes creates the unique username index. Safe to call on every boot.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userName", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_user_name_key"),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err = s.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "attendants", Value: 1}},
		Options: options.Index().SetName("events_attendants_idx"),
	})
	if err != nil {
		return fmt.Errorf("create events index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) observe(op string, fn func() error) error {
	if s.prom == nil {
		return fn()
	}

	var outcome error
	err := s.prom.ObserveDB(op, func() error {
		err := fn()
		if isDomainOutcome(err) {
			outcome = err
			return nil
		}
		return err
	})
	if outcome != nil {
		return outcome
	}
	return err
}

func isDomainOutcome(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		mongo.ErrNoDocuments,
		event.ErrNotFound, event.ErrAlreadyAttending, event.ErrNotAttending,
		user.ErrNotFound, user.ErrUserNameTaken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// unit runs fn inside a session transaction when enabled. Without one, inTx
// is false and fn undoes a half-applied change itself.
func (s *Store) unit(ctx context.Context, fn func(ctx context.Context, inTx bool) error) error {
	if !s.tx {
		return fn(ctx, false)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, true)
	})
	return err
}

// danglingRefs settles a failed reference cleanup that follows a delete.
// Inside a transaction the error aborts the delete. Without one the primary
// document is already gone, so the failure is logged and the delete stands;
// views skip ids that no longer resolve.
func danglingRefs(ctx context.Context, inTx bool, op string, err error) error {
	if err == nil || inTx {
		return err
	}
	slog.Default().WarnContext(ctx, "reference cleanup failed after delete", "op", op, "err", err)
	return nil
}

// userRefs loads {id, userName} for the given ids.
func (s *Store) userRefs(ctx context.Context, ids []string) (map[string]event.UserRef, error) {
	out := make(map[string]event.UserRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cur, err := s.users.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"userName": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var d struct {
			ID       string `bson:"_id"`
			UserName string `bson:"userName"`
		}
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out[d.ID] = event.UserRef{ID: d.ID, UserName: d.UserName}
	}
	return out, cur.Err()
}

func (s *Store) views(ctx context.Context, docs []eventDoc) ([]event.View, error) {
	seen := map[string]bool{}
	var ids []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, d := range docs {
		if d.CreatedBy != nil {
			add(*d.CreatedBy)
		}
		for _, a := range d.Attendants {
			add(a)
		}
	}

	refs, err := s.userRefs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]event.View, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.view(refs))
	}
	return out, nil
}
