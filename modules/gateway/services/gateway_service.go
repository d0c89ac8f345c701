package services

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/cache"
	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/exchange"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/persistence"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/upstream"
	"github.com/axiestudio/chatwidget/pkg/composables"
	"github.com/axiestudio/chatwidget/pkg/eventbus"
	"github.com/axiestudio/chatwidget/pkg/metrics"
)

const maxDiagnosticBytes = 512

type SendMessageDTO struct {
	ProfileID int
	SessionID string
	Message   string
}

// Reply is what the widget shows the visitor. Error carries the short
// diagnostic for operators; it is never a stack trace.
type Reply struct {
	Success bool
	Message string
	Error   string
}

// ExchangeCompletedEvent is published after every exchange, off the
// response path.
type ExchangeCompletedEvent struct {
	ProfileID int
	SessionID string
	Format    chatprofile.RequestFormat
	Outcome   upstream.Outcome
	Duration  time.Duration
}

type ChatGatewayServiceConfig struct {
	ProfileRepo chatprofile.Repository
	MessageRepo exchange.Repository
	Invoker     *upstream.Invoker
	// Cache is optional; nil disables reply caching.
	Cache cache.Cache
	// EventBus is optional; nil disables exchange events.
	EventBus eventbus.EventBus
	// PersistTimeout bounds the detached message-pair write. Defaults to 10s.
	PersistTimeout time.Duration
}

type ChatGatewayService struct {
	profileRepo    chatprofile.Repository
	messageRepo    exchange.Repository
	invoker        *upstream.Invoker
	cache          cache.Cache
	eventBus       eventbus.EventBus
	persistTimeout time.Duration
	persistWG      sync.WaitGroup
}

func NewChatGatewayService(config ChatGatewayServiceConfig) *ChatGatewayService {
	if config.MessageRepo == nil {
		config.MessageRepo = persistence.NewInmemMessageRepository()
	}
	if config.Invoker == nil {
		config.Invoker = upstream.NewInvoker(upstream.InvokerConfig{})
	}
	if config.PersistTimeout <= 0 {
		config.PersistTimeout = 10 * time.Second
	}
	return &ChatGatewayService{
		profileRepo:    config.ProfileRepo,
		messageRepo:    config.MessageRepo,
		invoker:        config.Invoker,
		cache:          config.Cache,
		eventBus:       config.EventBus,
		persistTimeout: config.PersistTimeout,
	}
}

func (s *ChatGatewayService) GetProfileByID(ctx context.Context, id int) (chatprofile.ChatProfile, error) {
	return s.profileRepo.GetByID(ctx, id)
}

// SessionMessages returns the transcript for a widget session, oldest first.
func (s *ChatGatewayService) SessionMessages(ctx context.Context, profileID int, sessionID string) ([]exchange.Message, error) {
	if _, err := s.profileRepo.GetByID(ctx, profileID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListBySession(ctx, profileID, sessionID)
}

/// SendMessage runs one chat exchange: resolve the dialect, build and invoke
// the upstream request, extract the reply, then persist the user/bot pair
// off the response path. Transport failures become a user-safe apology, not
// an error.
func (s *ChatGatewayService) SendMessage(ctx context.Context, dto SendMessageDTO) (Reply, error) {
	logger := composables.UseLogger(ctx)

	userMsg, err := exchange.NewMessage(dto.ProfileID, dto.SessionID, dto.Message, true, time.Now())
	if err != nil {
		return Reply{}, err
	}

	profile, err := s.profileRepo.GetByID(ctx, dto.ProfileID)
	if err != nil {
		return Reply{}, err
	}

	format := upstream.ResolveFormat(profile)

	if cached, ok := s.cachedReply(ctx, profile, dto.Message); ok {
		logger.WithFields(logrus.Fields{
			"profile_id": dto.ProfileID,
			"session_id": dto.SessionID,
		}).Info("replying with cached response")
		s.finishExchange(ctx, userMsg, cached, format, upstream.OutcomeSuccess, 0)
		return Reply{Success: true, Message: cached}, nil
	}

	req := upstream.BuildRequest(profile, format, dto.Message, dto.SessionID)

	start := time.Now()
	result := s.invoker.Invoke(ctx, req)
	duration := time.Since(start)

	metrics.UpstreamDuration.WithLabelValues(string(format)).Observe(duration.Seconds())

	if result.Outcome != upstream.OutcomeSuccess {
		diag := diagnostic(result, s.invoker.Timeout())
		logger.WithFields(logrus.Fields{
			"profile_id": dto.ProfileID,
			"session_id": dto.SessionID,
			"format":     format,
			"outcome":    result.Outcome,
			"diagnostic": diag,
		}).Error("upstream invocation failed")

		apology := fmt.Sprintf(
			"I apologize, but I couldn't reach the assistant just now. Please try again in a moment. (%s)", diag)
		s.finishExchange(ctx, userMsg, apology, format, result.Outcome, duration)
		return Reply{Success: false, Message: apology, Error: diag}, nil
	}

	reply := upstream.ExtractReply(result.Payload, format)
	s.saveReply(ctx, profile, dto.Message, reply)
	s.finishExchange(ctx, userMsg, reply, format, result.Outcome, duration)
	return Reply{Success: true, Message: reply}, nil
}

// finishExchange does the after-reply bookkeeping: counters, the detached
// message-pair write and the exchange event.
func (s *ChatGatewayService) finishExchange(
	ctx context.Context,
	userMsg exchange.Message,
	botText string,
	format chatprofile.RequestFormat,
	outcome upstream.Outcome,
	duration time.Duration,
) {
	metrics.ExchangesTotal.WithLabelValues(string(format), string(outcome)).Inc()

	if s.eventBus != nil {
		s.eventBus.Publish(&ExchangeCompletedEvent{
			ProfileID: userMsg.ProfileID(),
			SessionID: userMsg.SessionID(),
			Format:    format,
			Outcome:   outcome,
			Duration:  duration,
		})
	}

	// The message cap is an inbound limit; bot replies are stored truncated
	// to it. The visitor has already received the full text.
	if len(botText) > exchange.MaxMessageLength {
		botText = botText[:exchange.MaxMessageLength]
	}
	botMsg, err := exchange.NewMessage(userMsg.ProfileID(), userMsg.SessionID(), botText, false, time.Now())
	if err != nil {
		composables.UseLogger(ctx).WithError(err).Error("failed to build bot message")
		return
	}

	s.persistWG.Add(1)
	go s.persistExchange(context.WithoutCancel(ctx), userMsg, botMsg)
}

// persistExchange writes the user/bot pair. Failures are logged and
// swallowed; the visitor has already seen the reply.
func (s *ChatGatewayService) persistExchange(ctx context.Context, userMsg, botMsg exchange.Message) {
	defer s.persistWG.Done()

	ctx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()

	if err := s.appendPair(ctx, userMsg, botMsg); err != nil {
		metrics.PersistenceFailures.Inc()
		composables.UseLogger(ctx).WithError(err).WithFields(logrus.Fields{
			"profile_id": userMsg.ProfileID(),
			"session_id": userMsg.SessionID(),
		}).Error("failed to persist message pair")
	}
}

// appendPair writes the user/bot pair in one transaction when a pool is
// available, so a failed bot insert cannot strand an orphan user row.
// Memory-backed repositories take the direct path.
func (s *ChatGatewayService) appendPair(ctx context.Context, userMsg, botMsg exchange.Message) error {
	if _, err := composables.UsePool(ctx); err == nil {
		return composables.InTx(ctx, func(txCtx context.Context) error {
			return s.messageRepo.Append(txCtx, userMsg, botMsg)
		})
	}
	return s.messageRepo.Append(ctx, userMsg, botMsg)
}

// Flush waits for in-flight message writes. Called on graceful shutdown.
func (s *ChatGatewayService) Flush() {
	s.persistWG.Wait()
}

func (s *ChatGatewayService) cachedReply(ctx context.Context, profile chatprofile.ChatProfile, message string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	key, err := replyCacheKey(profile, message)
	if err != nil {
		return "", false
	}
	result, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrKeyNotFound) {
			composables.UseLogger(ctx).WithError(err).Warn("reply cache read failed")
		}
		return "", false
	}
	return result, true
}

func (s *ChatGatewayService) saveReply(ctx context.Context, profile chatprofile.ChatProfile, message, reply string) {
	if s.cache == nil || reply == upstream.NoResponseSentinel {
		return
	}
	key, err := replyCacheKey(profile, message)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, reply); err != nil {
		composables.UseLogger(ctx).WithError(err).Warn("reply cache write failed")
	}
}

func replyCacheKey(profile chatprofile.ChatProfile, message string) (string, error) {
	model, err := persistence.ToDBChatProfile(profile)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(model); err != nil {
		return "", err
	}
	buf.WriteString(message)
	hash := md5.Sum(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func diagnostic(result upstream.InvocationResult, timeout time.Duration) string {
	switch result.Outcome {
	case upstream.OutcomeTimeout:
		return fmt.Sprintf("upstream timed out after %s", timeout)
	case upstream.OutcomeNetworkError:
		return fmt.Sprintf("network error: %v", result.Cause)
	case upstream.OutcomeUpstreamError:
		body := result.Body
		if len(body) > maxDiagnosticBytes {
			body = body[:maxDiagnosticBytes]
		}
		return fmt.Sprintf("upstream returned status %d: %s", result.StatusCode, body)
	default:
		return "unknown failure"
	}
}
