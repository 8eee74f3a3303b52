package post

import "time"

// Comment is a reply on a post.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Post is a social update shared with trip members.
type Post struct {
	ID        string    `json:"id"`
	TripID    string    `json:"tripId"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	PhotoIDs  []string  `json:"photoIds"`
	Likes     []string  `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LikedBy reports whether userID likes the post.
func (p Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}
