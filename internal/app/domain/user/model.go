package user

import "time"

// User is a TravelTies profile keyed by the identity provider's UID.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Friends     []string  `json:"friends"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Public strips fields only the owner may see.
func (u User) Public() User {
	u.Email = ""
	return u
}

// IsFriend reports whether other is in u's friend list.
func (u User) IsFriend(other string) bool {
	for _, f := range u.Friends {
		if f == other {
			return true
		}
	}
	return false
}

// RequestStatus is the state of a friend request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

// FriendRequest is a pending or resolved friendship invitation.
type FriendRequest struct {
	ID          string        `json:"id"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	RespondedAt *time.Time    `json:"respondedAt,omitempty"`
}
