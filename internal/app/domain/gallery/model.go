package gallery

import "time"

// PhotoStatus tracks the upload lifecycle.
type PhotoStatus string

const (
	StatusPending PhotoStatus = "pending"
	StatusReady   PhotoStatus = "ready"
)

// Photo is an image stored in object storage.
type Photo struct {
	ID          string      `json:"id"`
	TripID      string      `json:"tripId"`
	UploaderID  string      `json:"uploaderId"`
	ObjectKey   string      `json:"objectKey"`
	ContentType string      `json:"contentType"`
	Caption     string      `json:"caption,omitempty"`
	Width       int         `json:"width,omitempty"`
	Height      int         `json:"height,omitempty"`
	Status      PhotoStatus `json:"status"`
	AlbumIDs    []string    `json:"albumIds"`
	CreatedAt   time.Time   `json:"createdAt"`
	// URL is a presigned download link filled in on read.
	URL string `json:"url,omitempty"`
}

// InAlbum reports whether the photo belongs to albumID.
func (p Photo) InAlbum(albumID string) bool {
	for _, id := range p.AlbumIDs {
		if id == albumID {
			return true
		}
	}
	return false
}

// Album groups photos of a trip.
type Album struct {
	ID           string    `json:"id"`
	TripID       string    `json:"tripId"`
	Name         string    `json:"name"`
	CoverPhotoID string    `json:"coverPhotoId,omitempty"`
	CreatedBy    string    `json:"createdBy"`
	CreatedAt    time.Time `json:"createdAt"`
}
