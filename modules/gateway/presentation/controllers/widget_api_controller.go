package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/exchange"
	"github.com/axiestudio/chatwidget/modules/gateway/presentation/controllers/dtos"
	"github.com/axiestudio/chatwidget/modules/gateway/services"
	"github.com/axiestudio/chatwidget/pkg/composables"
	"github.com/axiestudio/chatwidget/pkg/httpapi"
)

type WidgetAPIControllerConfig struct {
	BasePath    string
	Service     *services.ChatGatewayService
	Middlewares []mux.MiddlewareFunc
}

// WidgetAPIController is the public JSON surface the embedded widget talks
// to. It is cross-origin by nature; CORS and rate limiting are applied at
// server assembly.
type WidgetAPIController struct {
	basePath    string
	service     *services.ChatGatewayService
	middlewares []mux.MiddlewareFunc
}

func NewWidgetAPIController(cfg WidgetAPIControllerConfig) *WidgetAPIController {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/widget"
	}
	return &WidgetAPIController{
		basePath:    basePath,
		service:     cfg.Service,
		middlewares: cfg.Middlewares,
	}
}

func (c *WidgetAPIController) Key() string {
	return "WidgetAPIController"
}

func (c *WidgetAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	for _, mw := range c.middlewares {
		router.Use(mw)
	}
	router.HandleFunc("/{profile_id:[0-9]+}/chat", c.chat).Methods(http.MethodPost)
	router.HandleFunc("/{profile_id:[0-9]+}/history", c.history).Methods(http.MethodGet)
}

func (c *WidgetAPIController) chat(w http.ResponseWriter, r *http.Request) {
	logger := composables.UseLogger(r.Context())

	profileID, err := parseProfileID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, dtos.ErrorCodeInvalidRequest, "invalid profile id", nil)
		return
	}

	var dto dtos.ChatMessageDTO
	if err := httpapi.DecodeJSON(r, &dto); err != nil {
		logger.WithError(err).Error("failed to decode request body")
		_ = httpapi.WriteError(w, http.StatusBadRequest, dtos.ErrorCodeInvalidRequest, "invalid request body", nil)
		return
	}
	if fieldErrors, ok := dto.Ok(); !ok {
		_ = httpapi.WriteError(w, http.StatusBadRequest, dtos.ErrorCodeInvalidRequest, "validation failed", fieldErrors)
		return
	}

	reply, err := c.service.SendMessage(r.Context(), services.SendMessageDTO{
		ProfileID: profileID,
		SessionID: dto.SessionID,
		Message:   dto.Message,
	})
	if err != nil {
		c.handleSendError(w, r, err, logger)
		return
	}

	_ = httpapi.WriteJSON(w, http.StatusOK, &dtos.ChatResponseDTO{
		Success: reply.Success,
		Message: reply.Message,
		Error:   reply.Error,
	})
}

func (c *WidgetAPIController) handleSendError(w http.ResponseWriter, r *http.Request, err error, logger *logrus.Entry) {
	switch {
	case errors.Is(err, chatprofile.ErrProfileNotFound):
		_ = httpapi.WriteError(w, http.StatusNotFound, dtos.ErrorCodeProfileNotFound, "chat profile not found", nil)
	case errors.Is(err, exchange.ErrEmptyMessage),
		errors.Is(err, exchange.ErrMessageTooLong),
		errors.Is(err, exchange.ErrEmptySession):
		_ = httpapi.WriteError(w, http.StatusBadRequest, dtos.ErrorCodeInvalidRequest, err.Error(), nil)
	default:
		logger.WithError(err).Error("failed to process message")
		var meta map[string]string
		if id := composables.UseRequestID(r.Context()); id != "" {
			meta = map[string]string{"request_id": id}
		}
		_ = httpapi.WriteError(w, http.StatusInternalServerError, dtos.ErrorCodeInternalServer, "internal server error", meta)
	}
}

func (c *WidgetAPIController) history(w http.ResponseWriter, r *http.Request) {
	logger := composables.UseLogger(r.Context())

	profileID, err := parseProfileID(r)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, dtos.ErrorCodeInvalidRequest, "invalid profile id", nil)
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		_ = httpapi.WriteError(w, http.StatusBadRequest, dtos.ErrorCodeInvalidRequest, "session_id is required", nil)
		return
	}

	messages, err := c.service.SessionMessages(r.Context(), profileID, sessionID)
	if err != nil {
		if errors.Is(err, chatprofile.ErrProfileNotFound) {
			_ = httpapi.WriteError(w, http.StatusNotFound, dtos.ErrorCodeProfileNotFound, "chat profile not found", nil)
			return
		}
		logger.WithError(err).Error("failed to load session transcript")
		_ = httpapi.WriteError(w, http.StatusInternalServerError, dtos.ErrorCodeInternalServer, "internal server error", nil)
		return
	}

	_ = httpapi.WriteJSON(w, http.StatusOK, &dtos.TranscriptResponseDTO{
		SessionID: sessionID,
		Messages:  transformMessages(messages),
	})
}

func transformMessages(messages []exchange.Message) []dtos.TranscriptMessageDTO {
	out := make([]dtos.TranscriptMessageDTO, 0, len(messages))
	for _, msg := range messages {
		role := "assistant"
		if msg.IsUser() {
			role = "user"
		}
		out = append(out, dtos.TranscriptMessageDTO{
			Role:      role,
			Message:   msg.Text(),
			Timestamp: msg.CreatedAt().Format(time.RFC3339),
		})
	}
	return out
}

func parseProfileID(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["profile_id"])
}
