package app

import (
	"fmt"
	"net/url"
	"time"

	"github.com/geocoder89/attendhub/internal/config"
	"github.com/geocoder89/attendhub/internal/media"
	"github.com/geocoder89/attendhub/internal/observability"
)

// Media is the configured media store plus, for the local driver, where its
// files live and the path they are served under.
type Media struct {
	Store      media.Store
	StaticDir  string
	StaticPath string
}

// OpenMedia builds the media store named by MEDIA_DRIVER, wrapped in a
// timeout and circuit breaker.
func OpenMedia(cfg config.Config, prom *observability.Prom) (*Media, error) {
	var (
		inner media.Store
		out   Media
	)

	switch cfg.MediaDriver {
	case config.MediaDriverCloudinary:
		cld, err := media.NewCloudinaryStore(media.CloudinaryConfig{
			CloudName: cfg.CloudName,
			APIKey:    cfg.CloudAPIKey,
			APISecret: cfg.CloudAPISecret,
			Folder:    cfg.CloudinaryFolder,
		})
		if err != nil {
			return nil, err
		}
		inner = cld

	case config.MediaDriverLocal:
		local, err := media.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL)
		if err != nil {
			return nil, err
		}
		inner = local

		u, err := url.Parse(cfg.MediaBaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse MEDIA_BASE_URL: %w", err)
		}
		out.StaticDir = local.Dir()
		out.StaticPath = u.Path

	default:
		return nil, fmt.Errorf("unknown media driver %q", cfg.MediaDriver)
	}

	var record media.OpsRecorder
	if prom != nil {
		record = prom.ObserveMedia
	}

	out.Store = media.NewProtectedStore(inner, media.ProtectedConfig{
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}, record)

	return &out, nil
}
