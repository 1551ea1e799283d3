// ABOUTME: User, organization, and membership store methods
// ABOUTME: Backs signup, invitation acceptance, and organization switching

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateUser inserts a new user. Returns ErrDuplicate if the email is taken.
func (q *queries) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, display_name, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		fmtTime(user.CreatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("user %q: %w", user.Email, ErrDuplicate)
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	q.logger.Debug("created user", "id", user.ID)
	return nil
}

// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
func (q *queries) GetUser(ctx context.Context, id string) (*User, error) {
	return q.scanUser(q.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, created_at FROM users WHERE id = ?`, id))
}

// GetUserByEmail retrieves a user by email. Returns ErrNotFound if absent.
func (q *queries) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return q.scanUser(q.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, created_at FROM users WHERE email = ?`, email))
}

func (q *queries) scanUser(row *sql.Row) (*User, error) {
	var user User
	var createdAt string

	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &user, nil
}

// CreateOrganization inserts a new organization.
func (q *queries) CreateOrganization(ctx context.Context, org *Organization) error {
	query := `
		INSERT INTO organizations (id, name, is_personal_org, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.IsPersonalOrg,
		fmtTime(org.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting organization: %w", err)
	}

	q.logger.Debug("created organization", "id", org.ID, "personal", org.IsPersonalOrg)
	return nil
}

// GetOrganization retrieves an organization by ID.
func (q *queries) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	var createdAt string

	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, is_personal_org, created_at FROM organizations WHERE id = ?`, id).
		Scan(&org.ID, &org.Name, &org.IsPersonalOrg, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning organization: %w", err)
	}

	if org.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &org, nil
}

// CreateMembership inserts a membership. Returns ErrDuplicate if the user is
// already a member of the organization.
func (q *queries) CreateMembership(ctx context.Context, m *Membership) error {
	query := `
		INSERT INTO memberships (user_id, organization_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := q.db.ExecContext(ctx, query,
		m.UserID,
		m.OrganizationID,
		m.Role,
		fmtTime(m.JoinedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("membership: %w", ErrDuplicate)
		}
		return fmt.Errorf("inserting membership: %w", err)
	}
	return nil
}

// GetMembership retrieves a single membership.
func (q *queries) GetMembership(ctx context.Context, userID, orgID string) (*Membership, error) {
	var m Membership
	var joinedAt string

	err := q.db.QueryRowContext(ctx, `
		SELECT user_id, organization_id, role, joined_at
		FROM memberships
		WHERE user_id = ? AND organization_id = ?
	`, userID, orgID).Scan(&m.UserID, &m.OrganizationID, &m.Role, &joinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning membership: %w", err)
	}

	if m.JoinedAt, err = parseTime(joinedAt); err != nil {
		return nil, fmt.Errorf("parsing joined_at: %w", err)
	}
	return &m, nil
}

// ListMembershipsByUser returns all memberships for a user, personal
// organization first, then by join time.
func (q *queries) ListMembershipsByUser(ctx context.Context, userID string) ([]*Membership, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT m.user_id, m.organization_id, m.role, m.joined_at
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = ?
		ORDER BY o.is_personal_org DESC, m.joined_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*Membership
	for rows.Next() {
		var m Membership
		var joinedAt string
		if err := rows.Scan(&m.UserID, &m.OrganizationID, &m.Role, &joinedAt); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		if m.JoinedAt, err = parseTime(joinedAt); err != nil {
			return nil, fmt.Errorf("parsing joined_at: %w", err)
		}
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

// ListMembershipsByOrg returns all memberships in an organization, oldest
// first.
func (q *queries) ListMembershipsByOrg(ctx context.Context, orgID string) ([]*Membership, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT user_id, organization_id, role, joined_at
		FROM memberships
		WHERE organization_id = ?
		ORDER BY joined_at ASC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*Membership
	for rows.Next() {
		var m Membership
		var joinedAt string
		if err := rows.Scan(&m.UserID, &m.OrganizationID, &m.Role, &joinedAt); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		if m.JoinedAt, err = parseTime(joinedAt); err != nil {
			return nil, fmt.Errorf("parsing joined_at: %w", err)
		}
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

// DeleteMembership removes a user from an organization.
func (q *queries) DeleteMembership(ctx context.Context, userID, orgID string) error {
	result, err := q.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE user_id = ? AND organization_id = ?`, userID, orgID)
	if err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
