package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/cache"
	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/exchange"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/persistence"
	"github.com/axiestudio/chatwidget/modules/gateway/infrastructure/upstream"
	"github.com/axiestudio/chatwidget/pkg/eventbus"
	"github.com/axiestudio/chatwidget/pkg/logging"

	"github.com/sirupsen/logrus"
)

type fakeCache struct {
	mu      sync.Mutex
	storage map[string]string
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{storage: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, found := c.storage[key]
	if !found {
		return "", cache.ErrKeyNotFound
	}
	return value, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storage[key] = value
	c.sets++
	return nil
}

type fixture struct {
	service  *ChatGatewayService
	profiles *persistence.InmemChatProfileRepository
	messages *persistence.InmemMessageRepository
	profile  chatprofile.ChatProfile
}

func newFixture(t *testing.T, endpoint string, config ChatGatewayServiceConfig) *fixture {
	t.Helper()

	profiles := persistence.NewInmemChatProfileRepository()
	messages := persistence.NewInmemMessageRepository()

	profile, err := chatprofile.New(uuid.New(), "widget", endpoint, "sk-test", chatprofile.AuthHeader)
	require.NoError(t, err)
	profile, err = profiles.Save(context.Background(), profile)
	require.NoError(t, err)

	config.ProfileRepo = profiles
	config.MessageRepo = messages
	if config.Invoker == nil {
		config.Invoker = upstream.NewInvoker(upstream.InvokerConfig{Timeout: 2 * time.Second})
	}

	return &fixture{
		service:  NewChatGatewayService(config),
		profiles: profiles,
		messages: messages,
		profile:  profile,
	}
}

func TestChatGatewayService_SendMessage_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"hello visitor"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, ChatGatewayServiceConfig{})

	reply, err := f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: f.profile.ID(),
		SessionID: "s1",
		Message:   "hi",
	})
	require.NoError(t, err)
	require.True(t, reply.Success)
	require.Equal(t, "hello visitor", reply.Message)
	require.Empty(t, reply.Error)
}

func TestChatGatewayService_SendMessage_PersistsUserThenBot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"the answer"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, ChatGatewayServiceConfig{})

	_, err := f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: f.profile.ID(),
		SessionID: "s1",
		Message:   "the question",
	})
	require.NoError(t, err)
	f.service.Flush()

	msgs, err := f.messages.ListBySession(context.Background(), f.profile.ID(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.True(t, msgs[0].IsUser())
	require.Equal(t, "the question", msgs[0].Text())
	require.False(t, msgs[1].IsUser())
	require.Equal(t, "the answer", msgs[1].Text())
}

func TestChatGatewayService_SendMessage_LongReplyPersistedTruncated(t *testing.T) {
	longReply := strings.Repeat("y", exchange.MaxMessageLength+1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"` + longReply + `"}`))
	}))
	defer srv.Close()

	bus := eventbus.NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel))
	events := make(chan *ExchangeCompletedEvent, 1)
	bus.Subscribe(func(e *ExchangeCompletedEvent) {
		events <- e
	})

	f := newFixture(t, srv.URL, ChatGatewayServiceConfig{EventBus: bus})

	reply, err := f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: f.profile.ID(),
		SessionID: "s1",
		Message:   "hi",
	})
	require.NoError(t, err)
	require.True(t, reply.Success)
	// the visitor sees the full reply
	require.Equal(t, longReply, reply.Message)

	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("expected an exchange event for the long reply")
	}

	// the stored bot turn is capped, but both rows land
	f.service.Flush()
	msgs, err := f.messages.ListBySession(context.Background(), f.profile.ID(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.True(t, msgs[0].IsUser())
	require.False(t, msgs[1].IsUser())
	require.Len(t, msgs[1].Text(), exchange.MaxMessageLength)
	require.Equal(t, longReply[:exchange.MaxMessageLength], msgs[1].Text())
}

type failingMessageRepo struct {
	exchange.Repository
}

func (r *failingMessageRepo) Append(context.Context, ...exchange.Message) error {
	return errors.New("store unavailable")
}

func TestChatGatewayService_SendMessage_PersistenceFailureSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"still served"}`))
	}))
	defer srv.Close()

	profiles := persistence.NewInmemChatProfileRepository()
	profile, err := chatprofile.New(uuid.New(), "widget", srv.URL, "sk-test", chatprofile.AuthHeader)
	require.NoError(t, err)
	profile, err = profiles.Save(context.Background(), profile)
	require.NoError(t, err)

	service := NewChatGatewayService(ChatGatewayServiceConfig{
		ProfileRepo: profiles,
		MessageRepo: &failingMessageRepo{},
		Invoker:     upstream.NewInvoker(upstream.InvokerConfig{Timeout: 2 * time.Second}),
	})

	reply, err := service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: profile.ID(),
		SessionID: "s1",
		Message:   "hi",
	})
	require.NoError(t, err)
	require.True(t, reply.Success)
	require.Equal(t, "still served", reply.Message)

	// the failed write is swallowed; Flush must not hang or panic
	service.Flush()
}

func TestChatGatewayService_SendMessage_UpstreamErrorApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"broken"}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, ChatGatewayServiceConfig{})

	reply, err := f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: f.profile.ID(),
		SessionID: "s1",
		Message:   "hi",
	})
	require.NoError(t, err)
	require.False(t, reply.Success)
	require.Contains(t, reply.Message, "I apologize")
	require.Contains(t, reply.Error, "upstream returned status 502")
	require.Contains(t, reply.Error, "broken")

	// the apology is persisted as the bot turn
	f.service.Flush()
	msgs, err := f.messages.ListBySession(context.Background(), f.profile.ID(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Contains(t, msgs[1].Text(), "I apologize")
}

func TestChatGatewayService_SendMessage_NetworkErrorApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	f := newFixture(t, srv.URL, ChatGatewayServiceConfig{})

	reply, err := f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: f.profile.ID(),
		SessionID: "s1",
		Message:   "hi",
	})
	require.NoError(t, err)
	require.False(t, reply.Success)
	require.Contains(t, reply.Error, "network error")
}

func TestChatGatewayService_SendMessage_EmptyPayloadSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL, ChatGatewayServiceConfig{})

	reply, err := f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: f.profile.ID(),
		SessionID: "s1",
		Message:   "hi",
	})
	require.NoError(t, err)
	require.True(t, reply.Success)
	require.Equal(t, upstream.NoResponseSentinel, reply.Message)
}

func TestChatGatewayService_SendMessage_UnknownProfile(t *testing.T) {
	f := newFixture(t, "https://bot.example.com/chat", ChatGatewayServiceConfig{})

	_, err := f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: 9999,
		SessionID: "s1",
		Message:   "hi",
	})
	require.ErrorIs(t, err, chatprofile.ErrProfileNotFound)
}

func TestChatGatewayService_SendMessage_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t, "https://bot.example.com/chat", ChatGatewayServiceConfig{})

	_, err := f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: f.profile.ID(),
		SessionID: "s1",
		Message:   "",
	})
	require.ErrorIs(t, err, exchange.ErrEmptyMessage)

	_, err = f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: f.profile.ID(),
		SessionID: "",
		Message:   "hi",
	})
	require.ErrorIs(t, err, exchange.ErrEmptySession)

	_, err = f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: f.profile.ID(),
		SessionID: "s1",
		Message:   strings.Repeat("x", exchange.MaxMessageLength+1),
	})
	require.ErrorIs(t, err, exchange.ErrMessageTooLong)
}

func TestChatGatewayService_SendMessage_CachedReplySkipsUpstream(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"response":"fresh"}`))
	}))
	defer srv.Close()

	replies := newFakeCache()
	f := newFixture(t, srv.URL, ChatGatewayServiceConfig{Cache: replies})

	dto := SendMessageDTO{ProfileID: f.profile.ID(), SessionID: "s1", Message: "hi"}

	first, err := f.service.SendMessage(context.Background(), dto)
	require.NoError(t, err)
	require.Equal(t, "fresh", first.Message)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))

	second, err := f.service.SendMessage(context.Background(), dto)
	require.NoError(t, err)
	require.Equal(t, "fresh", second.Message)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits), "second call must be served from cache")

	// cached exchanges still persist a message pair each
	f.service.Flush()
	count, err := f.messages.CountBySession(context.Background(), f.profile.ID(), "s1")
	require.NoError(t, err)
	require.Equal(t, int64(4), count)
}

func TestChatGatewayService_SendMessage_SentinelNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	replies := newFakeCache()
	f := newFixture(t, srv.URL, ChatGatewayServiceConfig{Cache: replies})

	reply, err := f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: f.profile.ID(),
		SessionID: "s1",
		Message:   "hi",
	})
	require.NoError(t, err)
	require.Equal(t, upstream.NoResponseSentinel, reply.Message)
	require.Zero(t, replies.sets)
}

func TestChatGatewayService_SendMessage_PublishesExchangeEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	bus := eventbus.NewEventPublisher(logging.ConsoleLogger(logrus.PanicLevel))
	events := make(chan *ExchangeCompletedEvent, 1)
	bus.Subscribe(func(e *ExchangeCompletedEvent) {
		events <- e
	})

	f := newFixture(t, srv.URL, ChatGatewayServiceConfig{EventBus: bus})

	_, err := f.service.SendMessage(context.Background(), SendMessageDTO{
		ProfileID: f.profile.ID(),
		SessionID: "s1",
		Message:   "hi",
	})
	require.NoError(t, err)

	select {
	case e := <-events:
		require.Equal(t, f.profile.ID(), e.ProfileID)
		require.Equal(t, "s1", e.SessionID)
		require.Equal(t, upstream.OutcomeSuccess, e.Outcome)
	case <-time.After(time.Second):
		t.Fatal("expected an exchange event")
	}
}

func TestChatGatewayService_SessionMessages(t *testing.T) {
	f := newFixture(t, "https://bot.example.com/chat", ChatGatewayServiceConfig{})

	now := time.Now()
	userMsg, err := exchange.NewMessage(f.profile.ID(), "s1", "q", true, now)
	require.NoError(t, err)
	botMsg, err := exchange.NewMessage(f.profile.ID(), "s1", "a", false, now.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, f.messages.Append(context.Background(), userMsg, botMsg))

	msgs, err := f.service.SessionMessages(context.Background(), f.profile.ID(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	_, err = f.service.SessionMessages(context.Background(), 9999, "s1")
	require.ErrorIs(t, err, chatprofile.ErrProfileNotFound)
}

func TestDiagnostic(t *testing.T) {
	cases := []struct {
		name   string
		result upstream.InvocationResult
		want   string
	}{
		{
			name:   "timeout",
			result: upstream.InvocationResult{Outcome: upstream.OutcomeTimeout},
			want:   "upstream timed out after 30s",
		},
		{
			name:   "upstream error",
			result: upstream.InvocationResult{Outcome: upstream.OutcomeUpstreamError, StatusCode: 503, Body: "oops"},
			want:   "upstream returned status 503: oops",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, diagnostic(tc.result, 30*time.Second))
		})
	}
}

func TestDiagnostic_TruncatesLongBody(t *testing.T) {
	result := upstream.InvocationResult{
		Outcome:    upstream.OutcomeUpstreamError,
		StatusCode: 500,
		Body:       strings.Repeat("z", 2000),
	}
	diag := diagnostic(result, 30*time.Second)
	require.Less(t, len(diag), 600)
}
