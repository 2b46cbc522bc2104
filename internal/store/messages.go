// internal/store/messages.go
package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// SendDirectMessage persists a message between two accepted contacts.
func (s *Store) SendDirectMessage(senderID, recipientID int64, content string, msgType int, attachmentURL string) (*Message, error) {
	if content == "" && attachmentURL == "" {
		return nil, fmt.Errorf("message content is required")
	}

	ok, err := s.AreContacts(senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotContacts
	}

	return s.insertMessage(senderID, &recipientID, nil, content, msgType, attachmentURL)
}

// SendGroupMessage persists a message to a group the sender belongs to.
func (s *Store) SendGroupMessage(senderID, groupID int64, content string, msgType int, attachmentURL string) (*Message, error) {
	if content == "" && attachmentURL == "" {
		return nil, fmt.Errorf("message content is required")
	}

	ok, err := s.IsActiveGroupMember(groupID, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}

	return s.insertMessage(senderID, nil, &groupID, content, msgType, attachmentURL)
}

func (s *Store) insertMessage(senderID int64, recipientID, groupID *int64, content string, msgType int, attachmentURL string) (*Message, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		INSERT INTO messages (sender_id, recipient_id, group_id, content, type, attachment_url, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, senderID, nullableID(recipientID), nullableID(groupID), content, msgType, attachmentURL, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new message id: %w", err)
	}
	return s.GetMessage(id)
}

// GetMessage returns a single message by id.
func (s *Store) GetMessage(id int64) (*Message, error) {
	row := s.db.QueryRow(`
		SELECT m.id, m.sender_id, u.username, m.recipient_id, m.group_id,
		       m.content, m.type, m.attachment_url, m.sent_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.id = ? AND m.is_deleted = 0
	`, id)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// DeleteMessage soft-deletes a message. Senders can only delete their own.
func (s *Store) DeleteMessage(messageID, userID int64) error {
	res, err := s.db.Exec(`
		UPDATE messages SET is_deleted = 1
		WHERE id = ? AND sender_id = ? AND is_deleted = 0
	`, messageID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DirectHistory returns a page of the conversation between two contacts,
// oldest first. Paging walks backwards from the newest message.
func (s *Store) DirectHistory(userID, otherID int64, page, pageSize int) ([]Message, error) {
	ok, err := s.AreContacts(userID, otherID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotContacts
	}

	page, pageSize = normalizePage(page, pageSize)
	rows, err := s.db.Query(`
		SELECT m.id, m.sender_id, u.username, m.recipient_id, m.group_id,
		       m.content, m.type, m.attachment_url, m.sent_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.is_deleted = 0
		  AND ((m.sender_id = ? AND m.recipient_id = ?)
		    OR (m.sender_id = ? AND m.recipient_id = ?))
		ORDER BY m.sent_at DESC, m.id DESC
		LIMIT ? OFFSET ?
	`, userID, otherID, otherID, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load direct history: %w", err)
	}
	defer rows.Close()

	return scanMessagesOldestFirst(rows)
}

// GroupHistory returns a page of a group's conversation, oldest first.
// Members only.
func (s *Store) GroupHistory(groupID, userID int64, page, pageSize int) ([]Message, error) {
	ok, err := s.IsActiveGroupMember(groupID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}

	page, pageSize = normalizePage(page, pageSize)
	rows, err := s.db.Query(`
		SELECT m.id, m.sender_id, u.username, m.recipient_id, m.group_id,
		       m.content, m.type, m.attachment_url, m.sent_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.is_deleted = 0 AND m.group_id = ?
		ORDER BY m.sent_at DESC, m.id DESC
		LIMIT ? OFFSET ?
	`, groupID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load group history: %w", err)
	}
	defer rows.Close()

	return scanMessagesOldestFirst(rows)
}

// ListConversations builds the user's chat list from their contacts and
// groups, sorted by most recent activity.
func (s *Store) ListConversations(userID int64) ([]Conversation, error) {
	contacts, err := s.ListContacts(userID)
	if err != nil {
		return nil, err
	}
	groups, err := s.ListGroups(userID)
	if err != nil {
		return nil, err
	}

	var convs []Conversation
	for _, c := range contacts {
		contactID := c.UserID
		conv := Conversation{Type: "direct", ContactID: &contactID, Name: c.Username}
		last, err := s.lastDirectMessage(userID, contactID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			conv.LastMessage = last
			conv.LastActivity = &last.SentAt
		}
		convs = append(convs, conv)
	}
	for _, g := range groups {
		groupID := g.ID
		conv := Conversation{Type: "group", GroupID: &groupID, Name: g.Name}
		last, err := s.lastGroupMessage(groupID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			conv.LastMessage = last
			conv.LastActivity = &last.SentAt
		}
		convs = append(convs, conv)
	}

	sortConversations(convs)
	return convs, nil
}

func (s *Store) lastDirectMessage(userID, otherID int64) (*Message, error) {
	row := s.db.QueryRow(`
		SELECT m.id, m.sender_id, u.username, m.recipient_id, m.group_id,
		       m.content, m.type, m.attachment_url, m.sent_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.is_deleted = 0
		  AND ((m.sender_id = ? AND m.recipient_id = ?)
		    OR (m.sender_id = ? AND m.recipient_id = ?))
		ORDER BY m.sent_at DESC, m.id DESC
		LIMIT 1
	`, userID, otherID, otherID, userID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last message: %w", err)
	}
	return msg, nil
}

func (s *Store) lastGroupMessage(groupID int64) (*Message, error) {
	row := s.db.QueryRow(`
		SELECT m.id, m.sender_id, u.username, m.recipient_id, m.group_id,
		       m.content, m.type, m.attachment_url, m.sent_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.is_deleted = 0 AND m.group_id = ?
		ORDER BY m.sent_at DESC, m.id DESC
		LIMIT 1
	`, groupID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load last message: %w", err)
	}
	return msg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var recipientID, groupID sql.NullInt64
	var attachmentURL sql.NullString
	var sentAt string

	err := row.Scan(&m.ID, &m.SenderID, &m.SenderName, &recipientID, &groupID,
		&m.Content, &m.Type, &attachmentURL, &sentAt)
	if err != nil {
		return nil, err
	}

	if recipientID.Valid {
		m.RecipientID = &recipientID.Int64
	}
	if groupID.Valid {
		m.GroupID = &groupID.Int64
	}
	m.AttachmentURL = attachmentURL.String
	m.SentAt, _ = time.Parse(time.RFC3339, sentAt)
	return &m, nil
}

func scanMessagesOldestFirst(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rows came newest first, the client wants oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func sortConversations(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := convs[i].LastActivity, convs[j].LastActivity
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}
	return page, pageSize
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
