package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/attendhub/internal/domain/event"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/jackc/pgx/v5"
)

// lockEvent takes the event row lock that serialises attendance changes.
func lockEvent(ctx context.Context, tx pgx.Tx, eventID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id::text FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return event.ErrNotFound
	}
	return err
}

func userExists(ctx context.Context, tx pgx.Tx, userID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return user.ErrNotFound
	}
	return nil
}

func isAttending(ctx context.Context, tx pgx.Tx, eventID, userID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM event_attendants WHERE event_id = $1 AND user_id = $2)`,
		eventID, userID,
	).Scan(&exists)
	return exists, err
}

// AddAttendant records userID as attending eventID. A single row backs both
// the event's attendants and the user's attendingEvents.
func (r *EventsRepo) AddAttendant(ctx context.Context, eventID, userID string) error {
	return r.observe("events.add_attendant", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			if err := lockEvent(ctx, tx, eventID); err != nil {
				return err
			}
			if err := userExists(ctx, tx, userID); err != nil {
				return err
			}

			tag, err := tx.Exec(ctx, `
				INSERT INTO event_attendants (event_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT (event_id, user_id) DO NOTHING`,
				eventID, userID,
			)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return event.ErrAlreadyAttending
			}

			_, err = tx.Exec(ctx, `UPDATE events SET updated_at = NOW() WHERE id = $1`, eventID)
			return err
		})
	})
}

func (r *EventsRepo) RemoveAttendant(ctx context.Context, eventID, userID string) (event.View, error) {
	var v event.View

	err := r.observe("events.remove_attendant", func() error {
		return r.inTx(ctx, func(tx pgx.Tx) error {
			if err := lockEvent(ctx, tx, eventID); err != nil {
				return err
			}

			attending, err := isAttending(ctx, tx, eventID, userID)
			if err != nil {
				return err
			}
			if !attending {
				return event.ErrNotAttending
			}
			if err := userExists(ctx, tx, userID); err != nil {
				return err
			}

			if _, err := tx.Exec(ctx, `DELETE FROM event_attendants WHERE event_id = $1 AND user_id = $2`, eventID, userID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE events SET updated_at = NOW() WHERE id = $1`, eventID); err != nil {
				return err
			}

			v, err = scanView(tx.QueryRow(ctx, `
				SELECT `+viewColumns+`
				FROM events e LEFT JOIN users c ON c.id = e.created_by
				WHERE e.id = $1`, eventID))
			return err
		})
	})
	if err != nil {
		return event.View{}, err
	}

	return v, nil
}

func (r *EventsRepo) ListAttendees(ctx context.Context, eventID string) ([]event.UserRef, error) {
	out := []event.UserRef{}

	err := r.observe("events.list_attendees", func() error {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return event.ErrNotFound
		}

		rows, err := r.pool.Query(ctx, `
			SELECT u.id::text, u.user_name
			FROM event_attendants a JOIN users u ON u.id = a.user_id
			WHERE a.event_id = $1
			ORDER BY a.joined_at, u.id`, eventID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var ref event.UserRef
			if err := rows.Scan(&ref.ID, &ref.UserName); err != nil {
				return err
			}
			out = append(out, ref)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
