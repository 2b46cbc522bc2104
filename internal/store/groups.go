// internal/store/groups.go
package store

import (
	"database/sql"
	"fmt"
	"time"
)

// CreateGroup creates a group and enrolls the owner as its first member.
func (s *Store) CreateGroup(ownerID int64, name, description string) (*Group, error) {
	if name == "" {
		return nil, fmt.Errorf("group name is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.Exec(`
		INSERT INTO groups (name, description, owner_id, created_at)
		VALUES (?, ?, ?, ?)
	`, name, description, ownerID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	groupID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new group id: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO group_members (group_id, user_id, joined_at)
		VALUES (?, ?, ?)
	`, groupID, ownerID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to add owner as member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group: %w", err)
	}

	return s.GetGroup(groupID)
}

// GetGroup returns an active group by id.
func (s *Store) GetGroup(groupID int64) (*Group, error) {
	var g Group
	var createdAt string
	var description sql.NullString
	err := s.db.QueryRow(`
		SELECT g.id, g.name, g.description, g.owner_id, g.created_at,
		       (SELECT COUNT(*) FROM group_members m WHERE m.group_id = g.id AND m.is_active = 1)
		FROM groups g
		WHERE g.id = ? AND g.is_active = 1
	`, groupID).Scan(&g.ID, &g.Name, &description, &g.OwnerID, &createdAt, &g.MemberCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	g.Description = description.String
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &g, nil
}

// UpdateGroup changes a group's name and description. Owner only.
func (s *Store) UpdateGroup(groupID, userID int64, name, description string) error {
	if err := s.requireOwner(groupID, userID); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("group name is required")
	}
	_, err := s.db.Exec(`
		UPDATE groups SET name = ?, description = ? WHERE id = ? AND is_active = 1
	`, name, description, groupID)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	return nil
}

// DeleteGroup soft-deletes a group and deactivates its memberships.
// Owner only.
func (s *Store) DeleteGroup(groupID, userID int64) error {
	if err := s.requireOwner(groupID, userID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE groups SET is_active = 0 WHERE id = ?", groupID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if _, err := tx.Exec("UPDATE group_members SET is_active = 0 WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to deactivate memberships: %w", err)
	}

	return tx.Commit()
}

// AddMember adds one of the owner's accepted contacts to the group.
// A previously removed member is reactivated instead of re-inserted.
func (s *Store) AddMember(groupID, ownerID, userID int64) error {
	if err := s.requireOwner(groupID, ownerID); err != nil {
		return err
	}

	ok, err := s.AreContacts(ownerID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotContacts
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE group_members SET is_active = 1, joined_at = ?
		WHERE group_id = ? AND user_id = ? AND is_active = 0
	`, now, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to reactivate member: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.db.Exec(`
		INSERT INTO group_members (group_id, user_id, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT(group_id, user_id) DO NOTHING
	`, groupID, userID, now)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember deactivates a membership. Owner only; the owner cannot
// remove themselves.
func (s *Store) RemoveMember(groupID, ownerID, userID int64) error {
	if err := s.requireOwner(groupID, ownerID); err != nil {
		return err
	}
	if userID == ownerID {
		return ErrOwnerLeave
	}
	return s.deactivateMember(groupID, userID)
}

// LeaveGroup deactivates the caller's own membership. The owner must
// delete the group instead.
func (s *Store) LeaveGroup(groupID, userID int64) error {
	group, err := s.GetGroup(groupID)
	if err != nil {
		return err
	}
	if group.OwnerID == userID {
		return ErrOwnerLeave
	}
	return s.deactivateMember(groupID, userID)
}

func (s *Store) deactivateMember(groupID, userID int64) error {
	res, err := s.db.Exec(`
		UPDATE group_members SET is_active = 0
		WHERE group_id = ? AND user_id = ? AND is_active = 1
	`, groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotMember
	}
	return nil
}

// IsActiveGroupMember reports whether userID is an active member of an
// active group.
func (s *Store) IsActiveGroupMember(groupID, userID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM group_members m
		JOIN groups g ON g.id = m.group_id
		WHERE m.group_id = ? AND m.user_id = ? AND m.is_active = 1 AND g.is_active = 1
	`, groupID, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// ListGroups returns the active groups userID belongs to.
func (s *Store) ListGroups(userID int64) ([]Group, error) {
	rows, err := s.db.Query(`
		SELECT g.id, g.name, g.description, g.owner_id, g.created_at,
		       (SELECT COUNT(*) FROM group_members c WHERE c.group_id = g.id AND c.is_active = 1)
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ? AND m.is_active = 1 AND g.is_active = 1
		ORDER BY g.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		var createdAt string
		var description sql.NullString
		if err := rows.Scan(&g.ID, &g.Name, &description, &g.OwnerID, &createdAt, &g.MemberCount); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		g.Description = description.String
		g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ListMembers returns the active members of a group. Members only.
func (s *Store) ListMembers(groupID, userID int64) ([]GroupMember, error) {
	ok, err := s.IsActiveGroupMember(groupID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}

	rows, err := s.db.Query(`
		SELECT m.user_id, u.username, m.joined_at, g.owner_id
		FROM group_members m
		JOIN users u ON u.id = m.user_id
		JOIN groups g ON g.id = m.group_id
		WHERE m.group_id = ? AND m.is_active = 1
		ORDER BY u.username
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []GroupMember
	for rows.Next() {
		var m GroupMember
		var joinedAt string
		var ownerID int64
		if err := rows.Scan(&m.UserID, &m.Username, &joinedAt, &ownerID); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.JoinedAt, _ = time.Parse(time.RFC3339, joinedAt)
		m.IsOwner = m.UserID == ownerID
		members = append(members, m)
	}
	return members, rows.Err()
}

// ActiveMemberIDs returns the user ids of a group's active members.
func (s *Store) ActiveMemberIDs(groupID int64) ([]int64, error) {
	rows, err := s.db.Query(`
		SELECT user_id FROM group_members WHERE group_id = ? AND is_active = 1
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) requireOwner(groupID, userID int64) error {
	group, err := s.GetGroup(groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != userID {
		return ErrNotOwner
	}
	return nil
}
