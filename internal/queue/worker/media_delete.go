package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/attendhub/internal/jobs"
	"github.com/geocoder89/attendhub/internal/media"
)

// MediaDeleteHandler retries image removals the API gave up on.
func MediaDeleteHandler(store media.Store) Handler {
	return func(ctx context.Context, j jobs.Job) error {
		decoded, err := jobs.DecodePayload(j)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}

		p, ok := decoded.(jobs.MediaDeletePayload)
		if !ok {
			return fmt.Errorf("%w: unexpected payload %T", ErrPermanent, decoded)
		}
		if err := jobs.ValidatePayload(jobs.JobMediaDelete, p); err != nil {
			return fmt.Errorf("%w: %v", ErrPermanent, err)
		}

		if err := store.Delete(ctx, p.URL); err != nil {
			if errors.Is(err, media.ErrNotManaged) {
				return fmt.Errorf("%w: %v", ErrPermanent, err)
			}
			return err
		}
		return nil
	}
}
