package model

import "time"

// User represents a staff account as stored in the `users` table.
// Accounts authenticate with username/password and carry a role that
// the route middleware checks; the table state machine itself never
// inspects roles, it only records the acting user on audit entries.
//
// Fields:
//  ID           – primary key identifier.
//  Username     – unique login name.
//  PasswordHash – bcrypt hashed password.
//  Role         – STAFF or ADMIN.
//  IsActive     – whether the account may log in.
//  LastActive   – last successful login time.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64     // users.id
	Username     string     // users.username
	PasswordHash string     // users.password_hash
	Role         string     // users.role
	IsActive     bool       // users.is_active
	LastActive   *time.Time // users.last_active (nullable)
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    time.Time  // users.updated_at
}
