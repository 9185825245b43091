package jobs

import (
	"encoding/json"
	"fmt"
	"time"
)

func EncodePayload(t JobType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	switch t {
	case JobMediaDelete:
		switch payload.(type) {
		case MediaDeletePayload, *MediaDeletePayload:
		default:
			return nil, ErrPayloadTypeMismatch
		}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals j.Payload into the typed payload for j.Type.
func DecodePayload(j Job) (any, error) {
	if !j.Type.IsValid() {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch j.Type {
	case JobMediaDelete:
		var p MediaDeletePayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}

// NewMediaDelete validates, encodes and wraps a media deletion in a job.
func NewMediaDelete(p MediaDeletePayload) (Job, error) {
	if err := ValidatePayload(JobMediaDelete, p); err != nil {
		return Job{}, err
	}

	b, err := EncodePayload(JobMediaDelete, p)
	if err != nil {
		return Job{}, err
	}

	return NewJob(JobMediaDelete, b, time.Time{})
}
