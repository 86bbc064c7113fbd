package api

type ErrorResponse struct {
	Error string `json:"error" example:"obligation not found"`
}

type MessageResponse struct {
	Message string `json:"message" example:"currency deactivated"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
