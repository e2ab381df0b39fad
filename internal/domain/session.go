package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Role описывает роль пользователя витрины.
type Role string

const (
	// RoleCustomer — обычный покупатель.
	RoleCustomer Role = "customer"
	// RoleAdmin — администратор, допускается в панель управления.
	RoleAdmin Role = "admin"
)

// Matches сравнивает роли без учёта регистра.
func (r Role) Matches(other Role) bool {
	return strings.EqualFold(string(r), string(other))
}

// Valid сообщает, известна ли роль системе.
func (r Role) Valid() bool {
	return r.Matches(RoleCustomer) || r.Matches(RoleAdmin)
}

// User — профиль пользователя, возвращаемый при логине.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
}

// Session хранит токен и профиль. Без токена сессия считается неаутентифицированной.
type Session struct {
	Token string
	// User имеет смысл только при наличии токена. Может быть nil, если профиль не удалось прочитать.
	User *User
	// ExpiresAt берётся из claim exp без проверки подписи и служит только для информации.
	ExpiresAt time.Time
}

// Authenticated сообщает, есть ли у сессии токен.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Role возвращает роль пользователя или пустую строку.
func (s Session) Role() Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// Credentials — данные формы входа.
type Credentials struct {
	Username string
	Password string
}

// Validate проверяет, что обязательные поля заполнены.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" || c.Password == "" {
		return fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	return nil
}

// MinPasswordLength — минимальная длина пароля при регистрации.
const MinPasswordLength = 6

// SignupForm — данные формы регистрации.
type SignupForm struct {
	Username        string
	Password        string
	ConfirmPassword string
	Email           string
	FullName        string
	Address         string
	Phone           string
	Role            Role
}

// Validate проверяет форму регистрации и нормализует роль (по умолчанию customer).
func (f *SignupForm) Validate() error {
	switch {
	case strings.TrimSpace(f.Username) == "":
		return fmt.Errorf("%w: username is required", ErrValidation)
	case strings.TrimSpace(f.FullName) == "":
		return fmt.Errorf("%w: full name is required", ErrValidation)
	case strings.TrimSpace(f.Email) == "":
		return fmt.Errorf("%w: email is required", ErrValidation)
	case f.Password == "":
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(f.Email); err != nil {
		return fmt.Errorf("%w: email is invalid", ErrValidation)
	}
	if len(f.Password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}
	if f.ConfirmPassword != "" && f.ConfirmPassword != f.Password {
		return fmt.Errorf("%w: passwords do not match", ErrValidation)
	}
	if f.Role == "" {
		f.Role = RoleCustomer
	}
	if !f.Role.Valid() {
		return fmt.Errorf("%w: invalid user role", ErrValidation)
	}
	f.Role = Role(strings.ToLower(string(f.Role)))
	return nil
}
