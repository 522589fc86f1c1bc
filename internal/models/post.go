package models

import "time"

// Post is one status from the social feed.
type Post struct {
	ID                string    `json:"id"`
	AuthorHandle      string    `json:"author_handle"`
	Text              string    `json:"text"`
	ExtendedText      string    `json:"extended_text,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	IsRepost          bool      `json:"is_repost"`
	InReplyToStatusID string    `json:"in_reply_to_status_id,omitempty"`
	InReplyToUserID   string    `json:"in_reply_to_user_id,omitempty"`
	InReplyToHandle   string    `json:"in_reply_to_handle,omitempty"`
}

// FullText prefers the untruncated text when the feed supplied one.
func (p Post) FullText() string {
	if p.ExtendedText != "" {
		return p.ExtendedText
	}
	return p.Text
}

func (p Post) IsReply() bool {
	return p.InReplyToStatusID != "" || p.InReplyToUserID != "" || p.InReplyToHandle != ""
}
