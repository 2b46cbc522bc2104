// internal/store/store.go
// Package store implements the chat data layer: contacts, groups and
// message history on top of sqlite.
package store

import (
	"errors"
	"time"

	"github.com/ihor-shndr/mychat/internal/db"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrNotContacts     = errors.New("users are not contacts")
	ErrNotMember       = errors.New("user is not a group member")
	ErrNotOwner        = errors.New("user is not the group owner")
	ErrAlreadyContacts = errors.New("contact already exists")
	ErrOwnerLeave      = errors.New("group owner cannot leave, delete the group instead")
	ErrSelfContact     = errors.New("cannot add yourself as a contact")
)

// Contact statuses.
const (
	ContactPending  = 0
	ContactAccepted = 1
	ContactBlocked  = 2
)

// Message types.
const (
	MessageText  = 0
	MessageImage = 1
)

type Store struct {
	db *db.DB
}

func New(database *db.DB) *Store {
	return &Store{db: database}
}

type Contact struct {
	UserID     int64      `json:"user_id"`
	Username   string     `json:"username"`
	Status     int        `json:"status"`
	Message    string     `json:"message,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	MemberCount int       `json:"member_count,omitempty"`
}

type GroupMember struct {
	UserID   int64     `json:"user_id"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joined_at"`
	IsOwner  bool      `json:"is_owner"`
}

type Message struct {
	ID            int64     `json:"id"`
	SenderID      int64     `json:"sender_id"`
	SenderName    string    `json:"sender_name"`
	RecipientID   *int64    `json:"recipient_id,omitempty"`
	GroupID       *int64    `json:"group_id,omitempty"`
	Content       string    `json:"content"`
	Type          int       `json:"type"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
	SentAt        time.Time `json:"sent_at"`
}

// Conversation is one row in a user's chat list, either a direct
// conversation with a contact or a group the user belongs to.
type Conversation struct {
	Type         string     `json:"type"` // "direct" or "group"
	ContactID    *int64     `json:"contact_id,omitempty"`
	GroupID      *int64     `json:"group_id,omitempty"`
	Name         string     `json:"name"`
	LastMessage  *Message   `json:"last_message,omitempty"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}
