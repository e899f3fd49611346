package api

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoginRequest is the body of a password login
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	Token string `json:"token"`
}

// CreateSessionRequest opens a crew upload session
type CreateSessionRequest struct {
	ProjectName string `json:"projectName" validate:"required,max=200"`
	CrewName    string `json:"crewName" validate:"required,max=200"`
	Notes       string `json:"notes,omitempty" validate:"max=2000"`
}

// CreateSessionResponse identifies the session uploads are tagged with
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
}
