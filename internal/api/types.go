package api

import (
	"strings"
	"time"
)

// The backend serialises LocalDateTime values without a zone.
const localDateTimeLayout = "2006-01-02T15:04:05"

// Gender as the backend spells it.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ParseGender accepts m/f/male/female in any case.
func ParseGender(value string) (Gender, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "M", "MALE":
		return GenderMale, true
	case "F", "FEMALE":
		return GenderFemale, true
	default:
		return "", false
	}
}

// Timestamp is a zone-less LocalDateTime string as sent by the backend.
type Timestamp string

// Time parses the timestamp in the local zone. Unparseable values give
// the zero time.
func (t Timestamp) Time() time.Time {
	return parseTime(string(t))
}

// LoginRequest mirrors the POST /login body.
type LoginRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
}

// SignupRequest mirrors the POST /members body.
type SignupRequest struct {
	LoginID  string `json:"loginId"`
	Password string `json:"password"`
	Username string `json:"username"`
	Gender   Gender `json:"gender"`
	Age      int    `json:"age"`
}

// SignupResponse is returned by POST /members.
type SignupResponse struct {
	ID int64 `json:"id"`
}

// PostPage is one page of the feed.
type PostPage struct {
	Posts         []PostSummary `json:"postList"`
	TotalElements int64         `json:"totalElements"`
	TotalPages    int           `json:"totalPages"`
	Size          int           `json:"size"`
	Number        int           `json:"number"`
	First         bool          `json:"first"`
	Last          bool          `json:"last"`
}

// PostSummary is a feed entry.
type PostSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Writer       string    `json:"writer"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	CreatedAt    Timestamp `json:"createdAt"`
	ModifiedAt   Timestamp `json:"modifiedAt"`
	CommentCount int       `json:"commentCount"`
}

// Post is the full detail view of a post.
type Post struct {
	UUID      string    `json:"uuid"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserName  string    `json:"userName"`
	CreatedAt Timestamp `json:"createdAt"`
	ImageURLs []string  `json:"imageUrls"`
	Images    []Image   `json:"images,omitempty"`
	Comments  []Comment `json:"comments"`
}

// Image pairs an attached image with the id used to delete it.
type Image struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// Comment on a post. Writer is the commenter's login id.
type Comment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Writer    string    `json:"writer"`
	CreatedAt Timestamp `json:"createdAt"`
}

// MyPage is the authenticated member's profile and their posts.
type MyPage struct {
	LoginID       string `json:"loginId"`
	Username      string `json:"username"`
	Gender        Gender `json:"gender"`
	Age           int    `json:"age"`
	Posts         []Post `json:"posts"`
	TotalElements int64  `json:"totalElements"`
	TotalPages    int    `json:"totalPages"`
	Size          int    `json:"size"`
	Number        int    `json:"number"`
}

// ProfileUpdate is the PATCH /mypage body. Zero fields are left as is.
type ProfileUpdate struct {
	NewName     string `json:"newName,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`
	Gender      Gender `json:"gender,omitempty"`
	Age         *int   `json:"age,omitempty"`
}

// Draft is the content of a new or edited post.
type Draft struct {
	Title          string
	Content        string
	DeleteImageIDs []int64
	Files          []File
}

// File is an image attached to a Draft.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// CommentRequest mirrors the POST /posts/{id}/comments body.
type CommentRequest struct {
	Content string `json:"content"`
}

type draftPayload struct {
	Title          string  `json:"title,omitempty"`
	Content        string  `json:"content,omitempty"`
	DeleteImageIDs []int64 `json:"deleteImageIds,omitempty"`
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(localDateTimeLayout, value, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
