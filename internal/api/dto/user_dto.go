package dto

import (
	"time"

	"github.com/fieldops/taskboard/internal/domain"
)

// UserResponse is the public view of a roster entry.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	ManagerID *string     `json:"manager_id"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CreateUserRequest payload.
type CreateUserRequest struct {
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
	ManagerID *string     `json:"manager_id"`
}

// UpdateUserRequest payload; omitted fields stay unchanged.
type UpdateUserRequest struct {
	Name         *string      `json:"name"`
	Email        *string      `json:"email"`
	Password     *string      `json:"password"`
	Role         *domain.Role `json:"role"`
	ManagerID    *string      `json:"manager_id"`
	ClearManager bool         `json:"clear_manager"`
	Active       *bool        `json:"active"`
}
