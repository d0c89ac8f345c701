package chatprofile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProfileNotFound      = errors.New("chat profile not found")
	ErrInvalidAuthMethod    = errors.New("invalid auth method")
	ErrInvalidRequestFormat = errors.New("invalid request format")
)

// AuthMethod says where the upstream expects the tenant's API key.
type AuthMethod string

const (
	AuthHeader AuthMethod = "header"
	AuthBearer AuthMethod = "bearer"
	AuthQuery  AuthMethod = "query"
	// AuthBody is part of the configuration enum but intentionally has no
	// effect in the request builder. Pending product clarification.
	AuthBody AuthMethod = "body"
)

func (m AuthMethod) IsValid() bool {
	switch m {
	case AuthHeader, AuthBearer, AuthQuery, AuthBody:
		return true
	}
	return false
}

// RequestFormat identifies the upstream wire dialect.
type RequestFormat string

const (
	// FormatAuto means the format was not pinned and must be detected
	// from the endpoint URL.
	FormatAuto      RequestFormat = ""
	FormatAxie      RequestFormat = "axie"
	FormatLangflow  RequestFormat = "langflow"
	FormatOpenAI    RequestFormat = "openai"
	FormatAnthropic RequestFormat = "anthropic"
	FormatCohere    RequestFormat = "cohere"
	FormatGeneric   RequestFormat = "generic"
	FormatCustom    RequestFormat = "custom"
)

func (f RequestFormat) IsValid() bool {
	switch f {
	case FormatAuto, FormatAxie, FormatLangflow, FormatOpenAI, FormatAnthropic, FormatCohere, FormatGeneric, FormatCustom:
		return true
	}
	return false
}

type Repository interface {
	GetByID(ctx context.Context, id int) (ChatProfile, error)
	GetAll(ctx context.Context) ([]ChatProfile, error)
	Save(ctx context.Context, profile ChatProfile) (ChatProfile, error)
	Delete(ctx context.Context, id int) error
}

// ChatProfile is a tenant's upstream configuration. It never changes
// mid-invocation; callers hold one value for the whole exchange.
type ChatProfile interface {
	ID() int
	TenantID() uuid.UUID
	Name() string
	Endpoint() string
	APIKey() string
	AuthMethod() AuthMethod
	RequestFormat() RequestFormat
	CustomHeaders() map[string]string
	CustomPayload() map[string]any
	CreatedAt() time.Time
	UpdatedAt() time.Time
}

type chatProfile struct {
	id            int
	tenantID      uuid.UUID
	name          string
	endpoint      string
	apiKey        string
	authMethod    AuthMethod
	requestFormat RequestFormat
	customHeaders map[string]string
	customPayload map[string]any
	createdAt     time.Time
	updatedAt     time.Time
}

func New(tenantID uuid.UUID, name, endpoint, apiKey string, authMethod AuthMethod, opts ...Option) (ChatProfile, error) {
	if !authMethod.IsValid() {
		return nil, ErrInvalidAuthMethod
	}
	p := &chatProfile{
		tenantID:   tenantID,
		name:       name,
		endpoint:   endpoint,
		apiKey:     apiKey,
		authMethod: authMethod,
		createdAt:  time.Now(),
		updatedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if !p.requestFormat.IsValid() {
		return nil, ErrInvalidRequestFormat
	}
	return p, nil
}

type Option func(*chatProfile)

func WithID(id int) Option {
	return func(p *chatProfile) {
		p.id = id
	}
}

func WithRequestFormat(format RequestFormat) Option {
	return func(p *chatProfile) {
		p.requestFormat = format
	}
}

func WithCustomHeaders(headers map[string]string) Option {
	return func(p *chatProfile) {
		p.customHeaders = headers
	}
}

func WithCustomPayload(payload map[string]any) Option {
	return func(p *chatProfile) {
		p.customPayload = payload
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(p *chatProfile) {
		if !createdAt.IsZero() {
			p.createdAt = createdAt
		}
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(p *chatProfile) {
		if !updatedAt.IsZero() {
			p.updatedAt = updatedAt
		}
	}
}

func (p *chatProfile) ID() int {
	return p.id
}

func (p *chatProfile) TenantID() uuid.UUID {
	return p.tenantID
}

func (p *chatProfile) Name() string {
	return p.name
}

func (p *chatProfile) Endpoint() string {
	return p.endpoint
}

func (p *chatProfile) APIKey() string {
	return p.apiKey
}

func (p *chatProfile) AuthMethod() AuthMethod {
	return p.authMethod
}

func (p *chatProfile) RequestFormat() RequestFormat {
	return p.requestFormat
}

func (p *chatProfile) CustomHeaders() map[string]string {
	return p.customHeaders
}

func (p *chatProfile) CustomPayload() map[string]any {
	return p.customPayload
}

func (p *chatProfile) CreatedAt() time.Time {
	return p.createdAt
}

func (p *chatProfile) UpdatedAt() time.Time {
	return p.updatedAt
}
