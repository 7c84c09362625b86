package dto

// LoginRequest payload for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse reports the login status. Token is empty when Logged is false.
type LoginResponse struct {
	Logged bool   `json:"logged"`
	Token  string `json:"token"`
}
