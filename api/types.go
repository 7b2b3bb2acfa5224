package api

// envelope is the response wrapper used by most endpoints.
type envelope[T any] struct {
	Success *bool `json:"success,omitempty"`
	Data    T     `json:"data"`
}

type featureFlags struct {
	Pages map[string]bool `json:"pages"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the data returned by a successful login.
type LoginResponse struct {
	Token       string `json:"token"`
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Role        string `json:"role"`
	CompanyID   *int64 `json:"companyId,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
}

// Company is a tenant.
type Company struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Profile is the full profile of the signed-in user.
type Profile struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	ProfilePictureURL string `json:"profilePictureUrl"`
}
