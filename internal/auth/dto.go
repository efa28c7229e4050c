package auth

// User is the device-local account profile.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	AuthProvider string `json:"auth_provider"`
	PhotoURL     string `json:"photo_url,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,min=7,max=20"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// FederatedLoginRequest carries the identity asserted by an external
// provider. No password is involved; the account is created on first login.
type FederatedLoginRequest struct {
	Provider string `json:"provider" validate:"required,oneof=google apple"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=120"`
	PhotoURL string `json:"photo_url" validate:"omitempty,url"`
}

// UpdateProfileRequest updates only the fields that are set.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=2,max=120"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	PhotoURL *string `json:"photo_url,omitempty" validate:"omitempty,url"`
}

type session struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	LoggedInAt string `json:"logged_in_at"`
}
