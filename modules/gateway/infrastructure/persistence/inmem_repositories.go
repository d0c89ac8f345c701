package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/chatprofile"
	"github.com/axiestudio/chatwidget/modules/gateway/domain/entities/exchange"
)

// InmemChatProfileRepository backs tests and local development.
type InmemChatProfileRepository struct {
	mu      sync.RWMutex
	nextID  int
	storage map[int]chatprofile.ChatProfile
}

func NewInmemChatProfileRepository() *InmemChatProfileRepository {
	return &InmemChatProfileRepository{
		nextID:  1,
		storage: make(map[int]chatprofile.ChatProfile),
	}
}

func (r *InmemChatProfileRepository) GetByID(_ context.Context, id int) (chatprofile.ChatProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, found := r.storage[id]
	if !found {
		return nil, chatprofile.ErrProfileNotFound
	}
	return profile, nil
}

func (r *InmemChatProfileRepository) GetAll(_ context.Context) ([]chatprofile.ChatProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int, 0, len(r.storage))
	for id := range r.storage {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	profiles := make([]chatprofile.ChatProfile, 0, len(ids))
	for _, id := range ids {
		profiles = append(profiles, r.storage[id])
	}
	return profiles, nil
}

func (r *InmemChatProfileRepository) Save(_ context.Context, profile chatprofile.ChatProfile) (chatprofile.ChatProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := profile.ID()
	if id == 0 {
		id = r.nextID
		r.nextID++
		rebuilt, err := chatprofile.New(
			profile.TenantID(),
			profile.Name(),
			profile.Endpoint(),
			profile.APIKey(),
			profile.AuthMethod(),
			chatprofile.WithID(id),
			chatprofile.WithRequestFormat(profile.RequestFormat()),
			chatprofile.WithCustomHeaders(profile.CustomHeaders()),
			chatprofile.WithCustomPayload(profile.CustomPayload()),
			chatprofile.WithCreatedAt(profile.CreatedAt()),
			chatprofile.WithUpdatedAt(profile.UpdatedAt()),
		)
		if err != nil {
			return nil, err
		}
		profile = rebuilt
	} else if id >= r.nextID {
		r.nextID = id + 1
	}
	r.storage[id] = profile
	return profile, nil
}

func (r *InmemChatProfileRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.storage, id)
	return nil
}

type sessionKey struct {
	profileID int
	sessionID string
}

// InmemMessageRepository keeps per-session transcripts in append order.
type InmemMessageRepository struct {
	mu      sync.RWMutex
	storage map[sessionKey][]exchange.Message
}

func NewInmemMessageRepository() *InmemMessageRepository {
	return &InmemMessageRepository{
		storage: make(map[sessionKey][]exchange.Message),
	}
}

func (r *InmemMessageRepository) Append(_ context.Context, msgs ...exchange.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		key := sessionKey{profileID: msg.ProfileID(), sessionID: msg.SessionID()}
		r.storage[key] = append(r.storage[key], msg)
	}
	return nil
}

func (r *InmemMessageRepository) ListBySession(_ context.Context, profileID int, sessionID string) ([]exchange.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.storage[sessionKey{profileID: profileID, sessionID: sessionID}]
	messages := make([]exchange.Message, len(stored))
	copy(messages, stored)
	return messages, nil
}

func (r *InmemMessageRepository) CountBySession(_ context.Context, profileID int, sessionID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.storage[sessionKey{profileID: profileID, sessionID: sessionID}])), nil
}
