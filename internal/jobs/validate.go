package jobs

import "strings"

// ValidatePayload checks the fields a handler cannot do without.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	switch t {
	case JobMediaDelete:
		var p MediaDeletePayload
		switch v := payload.(type) {
		case MediaDeletePayload:
			p = v
		case *MediaDeletePayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if strings.TrimSpace(p.URL) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
