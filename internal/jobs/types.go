package jobs

type JobType string

const (
	// JobMediaDelete retries removal of an image the API could not delete
	// from the media host inline.
	JobMediaDelete JobType = "media.delete"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobMediaDelete:
		return true
	default:
		return false
	}
}
