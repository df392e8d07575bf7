package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"assessment-engine/internal/app"
	"assessment-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 5 * time.Second

// SessionStore keeps live sessions in Redis so any instance can serve the
// next answer. Sessions are JSON under session:{participant}:{conversation}
// with a sliding TTL; Update serialises writers with a short lock key and
// leaves the finished session's tag under session:finished:{...}.
type SessionStore struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:  client,
		ttl:     ttl,
		lockTTL: defaultLockTTL,
	}
}

// Put replaces whatever session is stored under key and clears the key's
// finished marker.
func (s *SessionStore) Put(ctx context.Context, key app.SessionKey, session *app.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(key), raw, s.ttl)
		pipe.Del(ctx, s.finishedKey(key))
		return nil
	})
	return err
}

func (s *SessionStore) Get(ctx context.Context, key app.SessionKey) (*app.Session, error) {
	return decodeSession(s.client.Get(ctx, s.key(key)))
}

// Update fails fast with ErrSessionBusy if another writer holds the key.
// The write runs in MULTI under WATCH of the session key: when a Put replaced
// the session while fn ran, nothing is written and the newer session stays.
func (s *SessionStore) Update(ctx context.Context, key app.SessionKey, fn func(*app.Session) error) error {
	release, ok, err := acquire(ctx, s.client, s.lockKey(key), s.lockTTL)
	if err != nil {
		return domain.Persistence("lock session", err)
	}
	if !ok {
		return domain.ErrSessionBusy
	}
	defer release()

	var (
		ran   bool
		fnErr error
	)
	sessionKey := s.key(key)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		session, err := decodeSession(tx.Get(ctx, sessionKey))
		if err != nil {
			return err
		}
		ran = true
		fnErr = fn(session)

		terminal := session.State.Terminal()
		if !terminal && fnErr != nil {
			return nil
		}
		raw, err := json.Marshal(session)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if terminal {
				pipe.Del(ctx, sessionKey)
				pipe.Set(ctx, s.finishedKey(key), session.Tag(), s.ttl)
				return nil
			}
			pipe.Set(ctx, sessionKey, raw, s.ttl)
			return nil
		})
		return err
	}, sessionKey)

	switch {
	case !ran:
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrPersistenceFailure) {
			return err
		}
		return domain.Persistence("watch session", err)
	case fnErr != nil:
		return fnErr
	case errors.Is(err, redis.TxFailedErr):
		// Replaced by a newer session; the outcome computed for the old one stands.
		return nil
	}
	return domain.Persistence("store session", err)
}

func (s *SessionStore) Delete(ctx context.Context, key app.SessionKey) error {
	if err := s.client.Del(ctx, s.key(key), s.finishedKey(key)).Err(); err != nil {
		return domain.Persistence("delete session", err)
	}
	return nil
}

func (s *SessionStore) Finished(ctx context.Context, key app.SessionKey) (string, error) {
	tag, err := s.client.Get(ctx, s.finishedKey(key)).Result()
	if isMiss(err) {
		return "", nil
	}
	if err != nil {
		return "", domain.Persistence("get finished session", err)
	}
	return tag, nil
}

func decodeSession(cmd *redis.StringCmd) (*app.Session, error) {
	raw, err := cmd.Bytes()
	if isMiss(err) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, domain.Persistence("get session", err)
	}
	var session app.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, domain.Persistence("decode session", err)
	}
	return &session, nil
}

func (s *SessionStore) key(k app.SessionKey) string {
	return "session:" + k.ParticipantID + ":" + k.ConversationID
}

func (s *SessionStore) lockKey(k app.SessionKey) string {
	return "session:lock:" + k.ParticipantID + ":" + k.ConversationID
}

func (s *SessionStore) finishedKey(k app.SessionKey) string {
	return "session:finished:" + k.ParticipantID + ":" + k.ConversationID
}
