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

type UsersRepo struct {
	s *Store
}

func (s *Store) userExists(ctx context.Context, id string) error {
	n, err := s.users.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) findOne(ctx context.Context, filter bson.M) (userDoc, error) {
	var d userDoc
	err := r.s.users.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return userDoc{}, user.ErrNotFound
	}
	return d, err
}

func (r *UsersRepo) List(ctx context.Context) ([]user.Summary, error) {
	out := []user.Summary{}

	err := r.s.observe("users.list", func() error {
		cur, err := r.s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
		if err != nil {
			return err
		}

		var docs []userDoc
		if err := cur.All(ctx, &docs); err != nil {
			return err
		}

		var ids []string
		for _, d := range docs {
			ids = append(ids, d.AttendingEvents...)
		}

		titles := map[string]string{}
		if len(ids) > 0 {
			ecur, err := r.s.events.Find(ctx,
				bson.M{"_id": bson.M{"$in": ids}},
				options.Find().SetProjection(bson.M{"title": 1}),
			)
			if err != nil {
				return err
			}
			var refs []struct {
				ID    string `bson:"_id"`
				Title string `bson:"title"`
			}
			if err := ecur.All(ctx, &refs); err != nil {
				return err
			}
			for _, ref := range refs {
				titles[ref.ID] = ref.Title
			}
		}

		for _, d := range docs {
			u := d.toUser()
			s := user.Summary{
				ID:              u.ID,
				UserName:        u.UserName,
				Email:           u.Email,
				Role:            u.Role,
				ProfileImageURL: u.ProfileImageURL,
				AttendingEvents: make([]user.EventRef, 0, len(u.AttendingEvents)),
				CreatedAt:       u.CreatedAt,
				UpdatedAt:       u.UpdatedAt,
			}
			for _, id := range u.AttendingEvents {
				if title, ok := titles[id]; ok {
					s.AttendingEvents = append(s.AttendingEvents, user.EventRef{ID: id, Title: title})
				}
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *UsersRepo) GetDetail(ctx context.Context, id string) (user.Detail, error) {
	var det user.Detail

	err := r.s.observe("users.get_detail", func() error {
		d, err := r.findOne(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		u := d.toUser()

		det = user.Detail{
			ID:              u.ID,
			UserName:        u.UserName,
			Email:           u.Email,
			Role:            u.Role,
			ProfileImageURL: u.ProfileImageURL,
			AttendingEvents: []event.Event{},
			CreatedAt:       u.CreatedAt,
			UpdatedAt:       u.UpdatedAt,
		}
		if len(u.AttendingEvents) == 0 {
			return nil
		}

		cur, err := r.s.events.Find(ctx, bson.M{"_id": bson.M{"$in": u.AttendingEvents}})
		if err != nil {
			return err
		}
		var docs []eventDoc
		if err := cur.All(ctx, &docs); err != nil {
			return err
		}

		byID := make(map[string]eventDoc, len(docs))
		for _, ed := range docs {
			byID[ed.ID] = ed
		}
		for _, eid := range u.AttendingEvents {
			if ed, ok := byID[eid]; ok {
				det.AttendingEvents = append(det.AttendingEvents, ed.toEvent())
			}
		}
		return nil
	})
	if err != nil {
		return user.Detail{}, err
	}

	return det, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var d userDoc
	err := r.s.observe("users.get", func() error {
		var err error
		d, err = r.findOne(ctx, bson.M{"_id": id})
		return err
	})
	if err != nil {
		return user.User{}, err
	}
	return d.toUser(), nil
}

func (r *UsersRepo) GetByUserName(ctx context.Context, userName string) (user.User, error) {
	var d userDoc
	err := r.s.observe("users.get_by_username", func() error {
		var err error
		d, err = r.findOne(ctx, bson.M{"userName": userName})
		return err
	})
	if err != nil {
		return user.User{}, err
	}
	return d.toUser(), nil
}

func (r *UsersRepo) Create(ctx context.Context, in user.NewUser) (user.User, error) {
	u := user.NewFromCreate(in)

	err := r.s.observe("users.create", func() error {
		_, err := r.s.users.InsertOne(ctx, userToDoc(u))
		if mongo.IsDuplicateKeyError(err) {
			return user.ErrUserNameTaken
		}
		return err
	})
	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, id string, p user.Patch) (user.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.UserName != nil {
		set["userName"] = *p.UserName
	}
	if p.Email != nil {
		set["email"] = *p.Email
	}
	if p.Role != nil {
		set["role"] = *p.Role
	}
	if p.PasswordHash != nil {
		set["password"] = *p.PasswordHash
	}
	if p.ProfileImageURL != nil {
		set["profileImageUrl"] = *p.ProfileImageURL
	}

	var d userDoc
	err := r.s.observe("users.update", func() error {
		err := r.s.users.FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&d)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return user.ErrNotFound
		case mongo.IsDuplicateKeyError(err):
			return user.ErrUserNameTaken
		}
		return err
	})
	if err != nil {
		return user.User{}, err
	}

	return d.toUser(), nil
}

// Delete removes the user, pulls them from every attendant list and clears
// createdBy on events they created.
func (r *UsersRepo) Delete(ctx context.Context, id string) (user.User, error) {
	var d userDoc

	err := r.s.observe("users.delete", func() error {
		return r.s.unit(ctx, func(ctx context.Context, inTx bool) error {
			err := r.s.users.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&d)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return user.ErrNotFound
			}
			if err != nil {
				return err
			}

			if _, err := r.s.events.UpdateMany(ctx,
				bson.M{"attendants": id},
				bson.M{"$pull": bson.M{"attendants": id}},
			); err != nil {
				return danglingRefs(ctx, inTx, "users.delete", err)
			}

			_, err = r.s.events.UpdateMany(ctx,
				bson.M{"createdBy": id},
				bson.M{"$set": bson.M{"createdBy": nil}},
			)
			return danglingRefs(ctx, inTx, "users.delete", err)
		})
	})
	if err != nil {
		return user.User{}, err
	}

	return d.toUser(), nil
}
