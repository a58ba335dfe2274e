package auth

// LoginRequest defines the structure for login requests.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest defines the structure for sign-up requests. The role is
// checked by the session so the rejection is recorded like any other failure.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// GoogleLoginResponse carries the URL the browser must visit to continue.
type GoogleLoginResponse struct {
	URL string `json:"url"`
}
