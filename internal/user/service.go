package user

import (
	"errors"
	"time"

	"github.com/badoux/checkmail"
)

var (
	ErrInvalidEmail      = errors.New("email address is not valid")
	ErrInvalidUserID     = errors.New("user id is required")
	ErrUserAlreadyExists = errors.New("USER_EXISTS")
	ErrUserNotFound      = errors.New("USER_NOT_EXISTS")
	ErrInternalError     = errors.New("internal Server Error")
)

// User is a profile for an identity asserted by the token issuer. The id is
// the external auth subject, supplied by the client on creation.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Service interface {
	CreateUser(id, email, firstName, lastName string) (*User, error)
	GetUserByID(id string) (*User, error)
	UpdateUser(id, email, firstName, lastName string) (*User, error)
	DeleteUser(id string) error
}

type service struct {
	repo Repository
}

func NewUserService(repo Repository) Service {
	return &service{repo: repo}
}

func validateEmailAddress(email string) error {
	if err := checkmail.ValidateFormat(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

func (s *service) CreateUser(id, email, firstName, lastName string) (*User, error) {
	if id == "" {
		return nil, ErrInvalidUserID
	}
	if err := validateEmailAddress(email); err != nil {
		return nil, err
	}

	user := &User{
		ID:        id,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}
	if err := s.repo.createUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) GetUserByID(id string) (*User, error) {
	return s.repo.getUserByID(id)
}

func (s *service) UpdateUser(id, email, firstName, lastName string) (*User, error) {
	if err := validateEmailAddress(email); err != nil {
		return nil, err
	}

	user := &User{
		ID:        id,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}
	if err := s.repo.updateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *service) DeleteUser(id string) error {
	return s.repo.deleteUser(id)
}
