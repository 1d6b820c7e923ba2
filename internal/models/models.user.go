// FilePath: internal/models/models.user.go
package models

// User as listed by /users. Fields carry struccy access tags: the values are
// permissions (or "root") that may read or write the field.
type User struct {
	ID       string `json:"id" readxs:"USER_VIEW,root" writexs:"root"`
	Name     string `json:"name" readxs:"USER_VIEW,root" writexs:"USER_UPDATE,root"`
	Email    string `json:"email" readxs:"USER_VIEW,root" writexs:"root"`
	Role     string `json:"role" readxs:"USER_VIEW,root" writexs:"ROLE_ASSIGN,root"`
	RoleID   string `json:"role_id" readxs:"USER_VIEW,root" writexs:"ROLE_ASSIGN,root"`
	IsADUser bool   `json:"is_ad_user" readxs:"USER_VIEW,root" writexs:"ROLE_ASSIGN,root"`
}

// UserProfile is served by /users/email/{email}.
type UserProfile struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  string  `json:"name"`
	Role  RoleRef `json:"role"`
}

type RoleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateUserInput struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	RoleID   string `json:"role_id" validate:"required"`
}

type UpdateUserInput struct {
	Name     string `json:"name" validate:"required"`
	RoleID   string `json:"role_id" validate:"required"`
	IsADUser bool   `json:"is_ad_user"`
}

// LoginRequest is posted by the login form.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is the data part of a successful /users/login answer.
type LoginResult struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}
