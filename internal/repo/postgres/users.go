package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/geocoder89/attendhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	base
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{base{pool: pool, prom: prom}}
}

const userColumns = `
	u.id::text, u.user_name, u.email, u.password_hash, u.role, u.profile_image_url,
	ARRAY(
		SELECT a.event_id::text FROM event_attendants a
		WHERE a.user_id = u.id
		ORDER BY a.joined_at, a.event_id
	) AS attending_events,
	u.created_at, u.updated_at`

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.UserName, &u.Email, &u.PasswordHash, &u.Role, &u.ProfileImageURL,
		&u.AttendingEvents, &u.CreatedAt, &u.UpdatedAt,
	)
	if u.AttendingEvents == nil {
		u.AttendingEvents = []string{}
	}
	return u, err
}

func (r *UsersRepo) List(ctx context.Context) ([]user.Summary, error) {
	out := []user.Summary{}

	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT u.id::text, u.user_name, u.email, u.role, u.profile_image_url,
			       COALESCE((
			           SELECT json_agg(json_build_object('id', e.id, 'title', e.title) ORDER BY a.joined_at, e.id)
			           FROM event_attendants a JOIN events e ON e.id = a.event_id
			           WHERE a.user_id = u.id
			       ), '[]'::json) AS attending_events,
			       u.created_at, u.updated_at
			FROM users u
			ORDER BY u.created_at ASC, u.id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s user.Summary
			if err := rows.Scan(
				&s.ID, &s.UserName, &s.Email, &s.Role, &s.ProfileImageURL,
				&s.AttendingEvents, &s.CreatedAt, &s.UpdatedAt,
			); err != nil {
				return err
			}
			if s.AttendingEvents == nil {
				s.AttendingEvents = []user.EventRef{}
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// GetDetail returns the user with attended events as full stored documents.
func (r *UsersRepo) GetDetail(ctx context.Context, id string) (user.Detail, error) {
	var d user.Detail

	err := r.observe("users.get_detail", func() error {
		u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
		if err != nil {
			return err
		}

		d = user.Detail{
			ID:              u.ID,
			UserName:        u.UserName,
			Email:           u.Email,
			Role:            u.Role,
			ProfileImageURL: u.ProfileImageURL,
			AttendingEvents: []event.Event{},
			CreatedAt:       u.CreatedAt,
			UpdatedAt:       u.UpdatedAt,
		}

		rows, err := r.pool.Query(ctx, `
			SELECT `+eventColumns+`
			FROM event_attendants ua JOIN events e ON e.id = ua.event_id
			WHERE ua.user_id = $1
			ORDER BY ua.joined_at, e.id`, id)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				return err
			}
			d.AttendingEvents = append(d.AttendingEvents, e)
		}
		return rows.Err()
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.Detail{}, user.ErrNotFound
		}
		return user.Detail{}, err
	}

	return d, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get", `u.id = $1`, id)
}

func (r *UsersRepo) GetByUserName(ctx context.Context, userName string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_username", `u.user_name = $1`, userName)
}

func (r *UsersRepo) getOne(ctx context.Context, op, where string, arg any) (user.User, error) {
	var u user.User

	err := r.observe(op, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE `+where, arg))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, in user.NewUser) (user.User, error) {
	u := user.NewFromCreate(in)

	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO users (id, user_name, email, password_hash, role, profile_image_url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			u.ID, u.UserName, u.Email, u.PasswordHash, u.Role, u.ProfileImageURL, u.CreatedAt, u.UpdatedAt,
		)
		if IsUniqueViolation(err) {
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
	var u user.User

	err := r.observe("users.update", func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx, `
			WITH updated AS (
				UPDATE users
				SET user_name         = COALESCE($2, user_name),
				    email             = COALESCE($3, email),
				    role              = COALESCE($4, role),
				    password_hash     = COALESCE($5, password_hash),
				    profile_image_url = COALESCE($6, profile_image_url),
				    updated_at        = NOW()
				WHERE id = $1
				RETURNING *
			)
			SELECT `+userColumns+` FROM updated u`,
			id, p.UserName, p.Email, p.Role, p.PasswordHash, p.ProfileImageURL,
		))
		if IsUniqueViolation(err) {
			return user.ErrUserNameTaken
		}
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}

// Delete removes the user. Attendance rows cascade and events they created
// keep existing with created_by set to NULL.
func (r *UsersRepo) Delete(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.observe("users.delete", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var err error
			u, err = scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1 FOR UPDATE`, id))
			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return u, nil
}
