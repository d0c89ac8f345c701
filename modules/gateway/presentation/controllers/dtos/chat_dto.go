package dtos

import (
	"github.com/go-playground/validator/v10"

	"github.com/axiestudio/chatwidget/pkg/constants"
)

const (
	ErrorCodeInvalidRequest  = "INVALID_REQUEST"
	ErrorCodeProfileNotFound = "PROFILE_NOT_FOUND"
	ErrorCodeInternalServer  = "INTERNAL_SERVER_ERROR"
)

type ChatMessageDTO struct {
	Message   string `json:"message" validate:"required,max=4096"`
	SessionID string `json:"session_id" validate:"required,max=128"`
}

func (dto *ChatMessageDTO) Ok() (map[string]string, bool) {
	errs := constants.Validate.Struct(dto)
	if errs == nil {
		return nil, true
	}
	errorMessages := map[string]string{}
	for _, err := range errs.(validator.ValidationErrors) {
		errorMessages[err.Field()] = err.Tag()
	}
	return errorMessages, false
}

type ChatResponseDTO struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type TranscriptMessageDTO struct {
	Role      string `json:"role"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type TranscriptResponseDTO struct {
	SessionID string                 `json:"session_id"`
	Messages  []TranscriptMessageDTO `json:"messages"`
}
