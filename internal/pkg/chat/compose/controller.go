// Package compose turns local keystroke activity into throttled typing
// signals and submit actions into outbound send requests.
package compose

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/domain"
)

// DefaultIdleWindow is the quiet period after the last keystroke before a
// typing-stop is emitted.
const DefaultIdleWindow = 2 * time.Second

// Signaler carries compose output to the transport.
type Signaler interface {
	TypingStart(conversationID string) error
	TypingStop(conversationID string) error
	SendMessage(conversationID, body, dedupeKey string) error
}

// Controller debounces typing signals for one conversation. The first
// keystroke after a quiet period emits typing-start and arms the idle timer;
// every further keystroke re-arms the timer without re-emitting. Timer expiry
// or a submit emits typing-stop exactly once per transition.
type Controller struct {
	signaler       Signaler
	conversationID string
	idle           time.Duration
	log            *zap.Logger

	mu     sync.Mutex
	typing bool
	timer  *time.Timer
	closed bool
}

// NewController constructs a controller for one open conversation.
// idle <= 0 falls back to DefaultIdleWindow.
func NewController(signaler Signaler, conversationID string, idle time.Duration, log *zap.Logger) *Controller {
	if idle <= 0 {
		idle = DefaultIdleWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		signaler:       signaler,
		conversationID: conversationID,
		idle:           idle,
		log:            log,
	}
}

// Keystroke records local composing activity.
func (c *Controller) Keystroke() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.typing {
		c.timer.Reset(c.idle)
		return
	}
	c.typing = true
	if err := c.signaler.TypingStart(c.conversationID); err != nil {
		c.log.Debug("typing-start not delivered", zap.Error(err))
	}
	c.timer = time.AfterFunc(c.idle, c.onIdle)
}

// ErrClosed is returned by Submit after the controller was torn down.
var ErrClosed = errors.New("compose: controller closed")

// Submit sends the composed body and ends the typing transition. The send
// carries a client-generated dedupe key. Errors (including a disconnected
// session) surface to the caller; nothing is queued for retry.
func (c *Controller) Submit(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.ErrEmptyMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.stopTypingLocked()
	c.mu.Unlock()

	return c.signaler.SendMessage(c.conversationID, body, uuid.NewString())
}

// Close cancels the idle timer and, when mid-composition, emits one final
// typing-stop so the remote set is not left dangling.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopTypingLocked()
	c.closed = true
}

func (c *Controller) onIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.typing {
		return
	}
	c.typing = false
	c.timer = nil
	if err := c.signaler.TypingStop(c.conversationID); err != nil {
		c.log.Debug("typing-stop not delivered", zap.Error(err))
	}
}

func (c *Controller) stopTypingLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if !c.typing {
		return
	}
	c.typing = false
	if err := c.signaler.TypingStop(c.conversationID); err != nil {
		c.log.Debug("typing-stop not delivered", zap.Error(err))
	}
}
