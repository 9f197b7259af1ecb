// Package model defines the data structures used throughout the application.
package model

import "time"

// MaxCommentLength is the longest comment body accepted, counted in
// characters (runes), not bytes.
const MaxCommentLength = 2000

// Comment is a user comment attached to a radio station.
//
// StationID and UserID carry omitempty because the per-station listing
// leaves them out of its projection; the per-user listing fills every field.
// ParentID is nil for top-level comments and points at another comment's ID
// for threaded replies. The reference is not enforced.
type Comment struct {
	ID        string    `json:"id"`
	StationID string    `json:"station_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username"`
	Comment   string    `json:"comment"`
	ParentID  *string   `json:"parent_id"`
	CreatedAt time.Time `json:"created_at"`
}
