package user

import (
	"time"

	"github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/google/uuid"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID           uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	PhoneNumber  string
	PasswordHash string
	Role         Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func New(email, firstName, lastName, phone, passwordHash string) (*User, error) {
	if email == "" {
		return nil, errors.NewValidationError("email", "cannot be empty")
	}
	if passwordHash == "" {
		return nil, errors.NewValidationError("password", "cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PhoneNumber:  phone,
		PasswordHash: passwordHash,
		Role:         RoleCustomer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
