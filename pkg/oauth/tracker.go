// Package oauth correlates external OAuth completions with the editor step
// that started them.
package oauth

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultTTL = 15 * time.Minute

var (
	ErrUnknownAttempt = errors.New("unknown authorization attempt")
	ErrAttemptExpired = errors.New("authorization attempt expired")
)

// MessageType is the kind of a completion message.
type MessageType string

const (
	MessageSuccess MessageType = "oauth_success"
	MessageError   MessageType = "oauth_error"
)

// ParseMessageType normalises the spellings used by the completion pages
// (OAUTH_SUCCESS, oauth_success, success, ...).
func ParseMessageType(raw string) (MessageType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "oauth_success", "success":
		return MessageSuccess, true
	case "oauth_error", "error":
		return MessageError, true
	default:
		return "", false
	}
}

// Attempt is one authorization started for a step.
type Attempt struct {
	ID          string
	StepID      string
	Provider    string
	InitiateURL string
	CreatedAt   time.Time
}

// Completion is delivered once the user finished (or abandoned) the
// provider flow. CorrelationID is the Attempt ID carried in the OAuth state.
type Completion struct {
	CorrelationID string      `json:"state"`
	Type          MessageType `json:"type"`
	Provider      string      `json:"provider,omitempty"`
	Error         string      `json:"error,omitempty"`
}

func (c Completion) Succeeded() bool {
	return c.Type == MessageSuccess
}

// Tracker is safe for concurrent use.
type Tracker struct {
	appURL string
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	attempts map[string]*Attempt
}

// NewTracker builds initiate URLs against appURL, the web app hosting
// /auth/initiate. A non-positive ttl uses DefaultTTL.
func NewTracker(appURL string, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Tracker{
		appURL:   strings.TrimRight(appURL, "/"),
		ttl:      ttl,
		now:      time.Now,
		attempts: make(map[string]*Attempt),
	}
}

// Begin registers a new attempt for stepID.
func (t *Tracker) Begin(stepID, provider string) Attempt {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempt := &Attempt{
		ID:        uuid.NewString(),
		StepID:    stepID,
		Provider:  provider,
		CreatedAt: t.now(),
	}

	query := url.Values{"provider": {provider}, "state": {attempt.ID}}
	attempt.InitiateURL = t.appURL + "/auth/initiate?" + query.Encode()

	t.attempts[attempt.ID] = attempt

	return *attempt
}

// Resolve consumes the attempt a completion refers to.
func (t *Tracker) Resolve(completion Completion) (Attempt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempt, ok := t.attempts[completion.CorrelationID]
	if !ok {
		return Attempt{}, ErrUnknownAttempt
	}

	delete(t.attempts, completion.CorrelationID)

	if t.expired(attempt) {
		return *attempt, ErrAttemptExpired
	}

	return *attempt, nil
}

// Cancel drops the attempts of a step, e.g. when it is removed or its
// service changes.
func (t *Tracker) Cancel(stepID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0

	for id, attempt := range t.attempts {
		if attempt.StepID == stepID {
			delete(t.attempts, id)
			removed++
		}
	}

	return removed
}

// Forget drops a single attempt.
func (t *Tracker) Forget(attemptID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.attempts, attemptID)
}

// Pending reports whether stepID has a live attempt.
func (t *Tracker) Pending(stepID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, attempt := range t.attempts {
		if attempt.StepID == stepID && !t.expired(attempt) {
			return true
		}
	}

	return false
}

// Prune removes expired attempts.
func (t *Tracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0

	for id, attempt := range t.attempts {
		if t.expired(attempt) {
			delete(t.attempts, id)
			removed++
		}
	}

	return removed
}

func (t *Tracker) expired(attempt *Attempt) bool {
	return t.now().Sub(attempt.CreatedAt) > t.ttl
}
