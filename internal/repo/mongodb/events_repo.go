package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type EventsRepo struct {
	s *Store
}

func (r *EventsRepo) findDoc(ctx context.Context, id string) (eventDoc, error) {
	var d eventDoc
	err := r.s.events.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return eventDoc{}, event.ErrNotFound
	}
	return d, err
}

func (r *EventsRepo) List(ctx context.Context) ([]event.View, error) {
	var out []event.View

	err := r.s.observe("events.list", func() error {
		cur, err := r.s.events.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
		if err != nil {
			return err
		}

		var docs []eventDoc
		if err := cur.All(ctx, &docs); err != nil {
			return err
		}

		out, err = r.s.views(ctx, docs)
		return err
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (event.View, error) {
	var v event.View

	err := r.s.observe("events.get_view", func() error {
		d, err := r.findDoc(ctx, id)
		if err != nil {
			return err
		}

		vs, err := r.s.views(ctx, []eventDoc{d})
		if err != nil {
			return err
		}
		v = vs[0]
		return nil
	})

	return v, err
}

func (r *EventsRepo) Get(ctx context.Context, id string) (event.Event, error) {
	var e event.Event

	err := r.s.observe("events.get", func() error {
		d, err := r.findDoc(ctx, id)
		e = d.toEvent()
		return err
	})
	if err != nil {
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) Create(ctx context.Context, in event.NewEvent) (event.Event, error) {
	e := event.NewFromCreate(in)

	err := r.s.observe("events.create", func() error {
		_, err := r.s.events.InsertOne(ctx, eventToDoc(e))
		return err
	})
	if err != nil {
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) Update(ctx context.Context, id string, p event.Patch) (event.Event, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Date != nil {
		set["date"] = *p.Date
	}
	if p.ImageURL != nil {
		set["imageUrl"] = *p.ImageURL
	}

	var d eventDoc
	err := r.s.observe("events.update", func() error {
		err := r.s.events.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&d)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return event.ErrNotFound
		}
		return err
	})
	if err != nil {
		return event.Event{}, err
	}

	return d.toEvent(), nil
}

// Delete removes the event and pulls it from every attendant's list.
func (r *EventsRepo) Delete(ctx context.Context, id string) (event.Event, error) {
	var d eventDoc

	err := r.s.observe("events.delete", func() error {
		return r.s.unit(ctx, func(ctx context.Context, inTx bool) error {
			err := r.s.events.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&d)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return event.ErrNotFound
			}
			if err != nil {
				return err
			}

			_, err = r.s.users.UpdateMany(ctx,
				bson.M{"attendingEvents": id},
				bson.M{"$pull": bson.M{"attendingEvents": id}},
			)
			return danglingRefs(ctx, inTx, "events.delete", err)
		})
	})
	if err != nil {
		return event.Event{}, err
	}

	return d.toEvent(), nil
}

func (r *EventsRepo) AddAttendant(ctx context.Context, eventID, userID string) error {
	return r.s.observe("events.add_attendant", func() error {
		return r.s.unit(ctx, func(ctx context.Context, inTx bool) error {
			if _, err := r.findDoc(ctx, eventID); err != nil {
				return err
			}
			if err := r.s.userExists(ctx, userID); err != nil {
				return err
			}

			now := time.Now().UTC()
			res, err := r.s.events.UpdateOne(ctx,
				bson.M{"_id": eventID, "attendants": bson.M{"$ne": userID}},
				bson.M{"$push": bson.M{"attendants": userID}, "$set": bson.M{"updatedAt": now}},
			)
			if err != nil {
				return err
			}
			if res.MatchedCount == 0 {
				return event.ErrAlreadyAttending
			}

			ures, err := r.s.users.UpdateOne(ctx,
				bson.M{"_id": userID},
				bson.M{"$addToSet": bson.M{"attendingEvents": eventID}},
			)
			if err == nil && ures.MatchedCount == 0 {
				err = user.ErrNotFound
			}
			if err != nil && !inTx {
				_, _ = r.s.events.UpdateOne(context.WithoutCancel(ctx),
					bson.M{"_id": eventID},
					bson.M{"$pull": bson.M{"attendants": userID}},
				)
			}
			return err
		})
	})
}

func (r *EventsRepo) RemoveAttendant(ctx context.Context, eventID, userID string) (event.View, error) {
	var v event.View

	err := r.s.observe("events.remove_attendant", func() error {
		return r.s.unit(ctx, func(ctx context.Context, inTx bool) error {
			d, err := r.findDoc(ctx, eventID)
			if err != nil {
				return err
			}
			if !event.HasAttendant(d.toEvent(), userID) {
				return event.ErrNotAttending
			}
			if err := r.s.userExists(ctx, userID); err != nil {
				return err
			}

			var updated eventDoc
			err = r.s.events.FindOneAndUpdate(ctx,
				bson.M{"_id": eventID, "attendants": userID},
				bson.M{"$pull": bson.M{"attendants": userID}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
				options.FindOneAndUpdate().SetReturnDocument(options.After),
			).Decode(&updated)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return event.ErrNotAttending
			}
			if err != nil {
				return err
			}

			if _, err := r.s.users.UpdateOne(ctx,
				bson.M{"_id": userID},
				bson.M{"$pull": bson.M{"attendingEvents": eventID}},
			); err != nil {
				if !inTx {
					_, _ = r.s.events.UpdateOne(context.WithoutCancel(ctx),
						bson.M{"_id": eventID},
						bson.M{"$addToSet": bson.M{"attendants": userID}},
					)
				}
				return err
			}

			vs, err := r.s.views(ctx, []eventDoc{updated})
			if err != nil {
				return err
			}
			v = vs[0]
			return nil
		})
	})
	if err != nil {
		return event.View{}, err
	}

	return v, nil
}

func (r *EventsRepo) ListAttendees(ctx context.Context, eventID string) ([]event.UserRef, error) {
	var out []event.UserRef

	err := r.s.observe("events.list_attendees", func() error {
		d, err := r.findDoc(ctx, eventID)
		if err != nil {
			return err
		}

		vs, err := r.s.views(ctx, []eventDoc{d})
		if err != nil {
			return err
		}
		out = vs[0].Attendants
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
