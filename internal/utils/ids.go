package utils

import "github.com/google/uuid"

// IsUUID reports whether s is a canonical 36 character UUID. uuid.Parse alone
// also accepts urn and braced forms, which are not valid ids here.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}

	_, err := uuid.Parse(s)
	return err == nil
}

// AllUUIDs is IsUUID over several ids.
func AllUUIDs(ids ...string) bool {
	for _, id := range ids {
		if !IsUUID(id) {
			return false
		}
	}
	return true
}
