// internal/store/contacts.go
package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SendInvitation creates a pending contact invitation from one user to
// another. Re-inviting an existing contact or a blocked user fails.
func (s *Store) SendInvitation(fromID, toID int64, message string) error {
	if fromID == toID {
		return ErrSelfContact
	}

	var exists int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM contacts
		WHERE (user_id = ? AND contact_user_id = ?)
		   OR (user_id = ? AND contact_user_id = ?)
	`, fromID, toID, toID, fromID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check existing contact: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyContacts
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(`
		INSERT INTO contacts (user_id, contact_user_id, status, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, fromID, toID, ContactPending, message, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAlreadyContacts
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// AcceptInvitation accepts a pending invitation addressed to userID and
// creates the reciprocal accepted row, so contact lookups stay
// one-directional afterwards.
func (s *Store) AcceptInvitation(userID, fromID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	res, err := tx.Exec(`
		UPDATE contacts SET status = ?, accepted_at = ?
		WHERE user_id = ? AND contact_user_id = ? AND status = ?
	`, ContactAccepted, now, fromID, userID, ContactPending)
	if err != nil {
		return fmt.Errorf("failed to accept invitation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(`
		INSERT INTO contacts (user_id, contact_user_id, status, accepted_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, fromID, ContactAccepted, now, now)
	if err != nil {
		return fmt.Errorf("failed to create reciprocal contact: %w", err)
	}

	return tx.Commit()
}

// RejectInvitation deletes a pending invitation addressed to userID.
func (s *Store) RejectInvitation(userID, fromID int64) error {
	res, err := s.db.Exec(`
		DELETE FROM contacts
		WHERE user_id = ? AND contact_user_id = ? AND status = ?
	`, fromID, userID, ContactPending)
	if err != nil {
		return fmt.Errorf("failed to reject invitation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveContact deletes the contact relationship in both directions.
func (s *Store) RemoveContact(userID, contactID int64) error {
	res, err := s.db.Exec(`
		DELETE FROM contacts
		WHERE (user_id = ? AND contact_user_id = ?)
		   OR (user_id = ? AND contact_user_id = ?)
	`, userID, contactID, contactID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove contact: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BlockContact marks an accepted contact as blocked from userID's side.
func (s *Store) BlockContact(userID, contactID int64) error {
	res, err := s.db.Exec(`
		UPDATE contacts SET status = ?
		WHERE user_id = ? AND contact_user_id = ? AND status = ?
	`, ContactBlocked, userID, contactID, ContactAccepted)
	if err != nil {
		return fmt.Errorf("failed to block contact: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AreContacts reports whether userID has other as an accepted contact.
func (s *Store) AreContacts(userID, otherID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM contacts
		WHERE user_id = ? AND contact_user_id = ? AND status = ?
	`, userID, otherID, ContactAccepted).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check contact: %w", err)
	}
	return count > 0, nil
}

// ListContacts returns userID's accepted contacts.
func (s *Store) ListContacts(userID int64) ([]Contact, error) {
	rows, err := s.db.Query(`
		SELECT c.contact_user_id, u.username, c.status, c.accepted_at
		FROM contacts c
		JOIN users u ON u.id = c.contact_user_id
		WHERE c.user_id = ? AND c.status = ?
		ORDER BY u.username
	`, userID, ContactAccepted)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

// ListPendingInvitations returns invitations addressed to userID that
// have not been answered yet.
func (s *Store) ListPendingInvitations(userID int64) ([]Contact, error) {
	rows, err := s.db.Query(`
		SELECT c.user_id, u.username, c.status, c.accepted_at, c.message
		FROM contacts c
		JOIN users u ON u.id = c.user_id
		WHERE c.contact_user_id = ? AND c.status = ?
		ORDER BY c.created_at DESC
	`, userID, ContactPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		var acceptedAt, message sql.NullString
		if err := rows.Scan(&c.UserID, &c.Username, &c.Status, &acceptedAt, &message); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		c.Message = message.String
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// ListSentInvitations returns userID's own unanswered invitations.
func (s *Store) ListSentInvitations(userID int64) ([]Contact, error) {
	rows, err := s.db.Query(`
		SELECT c.contact_user_id, u.username, c.status, c.accepted_at, c.message
		FROM contacts c
		JOIN users u ON u.id = c.contact_user_id
		WHERE c.user_id = ? AND c.status = ?
		ORDER BY c.created_at DESC
	`, userID, ContactPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent invitations: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		var acceptedAt, message sql.NullString
		if err := rows.Scan(&c.UserID, &c.Username, &c.Status, &acceptedAt, &message); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		c.Message = message.String
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// SearchUsers finds users by username prefix, excluding the searcher.
func (s *Store) SearchUsers(userID int64, query string, limit int) ([]Contact, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT u.id, u.username, COALESCE(c.status, -1), c.accepted_at
		FROM users u
		LEFT JOIN contacts c ON c.user_id = ? AND c.contact_user_id = u.id
		WHERE u.id != ? AND u.username LIKE ? ESCAPE '\'
		ORDER BY u.username
		LIMIT ?
	`, userID, userID, escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func scanContacts(rows *sql.Rows) ([]Contact, error) {
	var contacts []Contact
	for rows.Next() {
		var c Contact
		var acceptedAt sql.NullString
		if err := rows.Scan(&c.UserID, &c.Username, &c.Status, &acceptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		if acceptedAt.Valid {
			t, _ := time.Parse(time.RFC3339, acceptedAt.String)
			c.AcceptedAt = &t
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
