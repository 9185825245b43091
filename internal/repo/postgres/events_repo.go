package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventsRepo struct {
	base
}

func NewEventsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{base{pool: pool, prom: prom}}
}

// eventColumns selects a stored event with its attendant ids, oldest first.
const eventColumns = `
	e.id::text, e.title, e.description, e.date, e.created_by::text, e.image_url,
	ARRAY(
		SELECT a.user_id::text FROM event_attendants a
		WHERE a.event_id = e.id
		ORDER BY a.joined_at, a.user_id
	) AS attendants,
	e.created_at, e.updated_at`

// viewColumns resolves creator and attendants to {id, userName}.
const viewColumns = `
	e.id::text, e.title, e.description, e.date, e.image_url,
	CASE WHEN c.id IS NULL THEN NULL
	     ELSE json_build_object('id', c.id, 'userName', c.user_name) END AS created_by,
	COALESCE((
		SELECT json_agg(json_build_object('id', u.id, 'userName', u.user_name) ORDER BY a.joined_at, u.id)
		FROM event_attendants a JOIN users u ON u.id = a.user_id
		WHERE a.event_id = e.id
	), '[]'::json) AS attendants,
	e.created_at, e.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (event.Event, error) {
	var e event.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Date, &e.CreatedBy, &e.ImageURL,
		&e.Attendants, &e.CreatedAt, &e.UpdatedAt,
	)
	if e.Attendants == nil {
		e.Attendants = []string{}
	}
	return e, err
}

func scanView(row rowScanner) (event.View, error) {
	var v event.View
	err := row.Scan(
		&v.ID, &v.Title, &v.Description, &v.Date, &v.ImageURL,
		&v.CreatedBy, &v.Attendants, &v.CreatedAt, &v.UpdatedAt,
	)
	if v.Attendants == nil {
		v.Attendants = []event.UserRef{}
	}
	return v, err
}

func (r *EventsRepo) List(ctx context.Context) ([]event.View, error) {
	out := []event.View{}

	err := r.observe("events.list", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+viewColumns+`
			FROM events e LEFT JOIN users c ON c.id = e.created_by
			ORDER BY e.created_at ASC, e.id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			v, err := scanView(rows)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (event.View, error) {
	var v event.View

	err := r.observe("events.get_view", func() error {
		var err error
		v, err = scanView(r.pool.QueryRow(ctx, `
			SELECT `+viewColumns+`
			FROM events e LEFT JOIN users c ON c.id = e.created_by
			WHERE e.id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.View{}, event.ErrNotFound
		}
		return event.View{}, err
	}

	return v, nil
}

func (r *EventsRepo) Get(ctx context.Context, id string) (event.Event, error) {
	var e event.Event

	err := r.observe("events.get", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) Create(ctx context.Context, in event.NewEvent) (event.Event, error) {
	e := event.NewFromCreate(in)

	err := r.observe("events.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO events (id, title, description, date, created_by, image_url, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.Title, e.Description, e.Date, e.CreatedBy, e.ImageURL, e.CreatedAt, e.UpdatedAt,
		)
		return err
	})
	if err != nil {
		return event.Event{}, err
	}

	return e, nil
}

func (r *EventsRepo) Update(ctx context.Context, id string, p event.Patch) (event.Event, error) {
	var e event.Event

	err := r.observe("events.update", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx, `
			WITH updated AS (
				UPDATE events
				SET title       = COALESCE($2, title),
				    description = COALESCE($3, description),
				    date        = COALESCE($4, date),
				    image_url   = COALESCE($5, image_url),
				    updated_at  = NOW()
				WHERE id = $1
				RETURNING *
			)
			SELECT `+eventColumns+` FROM updated e`,
			id, p.Title, p.Description, p.Date, p.ImageURL,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}

// Delete removes the event and returns it as it was. Attendance rows go with
// it through the foreign key cascade.
func (r *EventsRepo) Delete(ctx context.Context, id string) (event.Event, error) {
	var e event.Event

	err := r.observe("events.delete", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			var err error
			e, err = scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1 FOR UPDATE`, id))
			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}

	return e, nil
}
