// Package chat wires the transport session to the presence, typing,
// directory and thread trackers. Subscription lifetime is explicit: handlers
// are registered when the engine is built and detached on Close.
package chat

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/api"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/cache/port"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/infrastructure/realtime"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/compose"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/directory"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/presence"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/thread"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/typing"
)

// Options tunes the engine's timers and optional snapshot cache. Zero values
// use the package defaults.
type Options struct {
	PresenceInterval time.Duration
	TypingExpiry     time.Duration
	ComposeIdle      time.Duration
	Cache            port.Cache
}

// Engine is the client-side synchronization core: one session, one directory,
// one open thread, presence and typing state, all owned by a single logical
// user session.
type Engine struct {
	session   *realtime.Session
	localUser string
	log       *zap.Logger
	opts      Options

	Presence  *presence.Tracker
	Typing    *typing.Tracker
	Directory *directory.Directory
	Thread    *thread.Reconciler

	subs []*realtime.Subscription
}

// NewEngine builds the trackers and registers their event subscriptions.
func NewEngine(session *realtime.Session, apiClient *api.Client, localUser string, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		session:   session,
		localUser: localUser,
		log:       log,
		opts:      opts,
	}

	e.Presence = presence.NewTracker(session, opts.PresenceInterval, log.Named("presence"))
	e.Typing = typing.NewTracker(opts.TypingExpiry, log.Named("typing"))
	e.Directory = directory.New(apiClient, opts.Cache, localUser, log.Named("directory"))
	e.Thread = thread.New(apiClient, session, localUser, log.Named("thread"))

	e.Directory.SetOnLoaded(func() {
		e.Presence.Watch(e.Directory.OtherParticipants())
	})

	e.subs = []*realtime.Subscription{
		session.Subscribe(realtime.EventMessage, e.onMessage),
		session.Subscribe(realtime.EventNewMessage, e.onNewMessage),
		session.Subscribe(realtime.EventMessagesRead, e.onMessagesRead),
		session.Subscribe(realtime.EventUserTyping, e.onUserTyping),
		session.Subscribe(realtime.EventUserStopped, e.onUserStoppedTyping),
		session.Subscribe(realtime.EventOnlineStatus, e.onOnlineStatus),
	}
	return e
}

// Start connects the session and performs the initial directory load. The
// warm-start snapshot, when present, is served first so the UI has something
// to paint while the live load runs.
func (e *Engine) Start(ctx context.Context) error {
	e.Directory.WarmStart(ctx)
	if err := e.session.Connect(ctx); err != nil {
		return err
	}
	return e.Directory.LoadAll(ctx)
}

// OpenConversation transitions the UI to the given conversation: the unread
// counter resets immediately and the thread loads from the server.
func (e *Engine) OpenConversation(ctx context.Context, conversationID string) error {
	e.Directory.MarkViewed(conversationID)
	return e.Thread.Load(ctx, conversationID)
}

// CloseConversation leaves the open thread, if any.
func (e *Engine) CloseConversation() {
	e.Thread.Close()
	e.Directory.ClearOpen()
}

// Composer returns a compose controller bound to the conversation.
func (e *Engine) Composer(conversationID string) *compose.Controller {
	return compose.NewController(e.session, conversationID, e.opts.ComposeIdle, e.log.Named("compose"))
}

// Close detaches every subscription and tears the trackers and session down.
func (e *Engine) Close() {
	for _, sub := range e.subs {
		sub.Unsubscribe()
	}
	e.subs = nil
	e.Thread.Close()
	e.Presence.Stop()
	e.Typing.Close()
	e.session.Close()
}

func (e *Engine) onMessage(data json.RawMessage) {
	var p realtime.MessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		e.log.Warn("bad message payload", zap.Error(err))
		return
	}
	if p.Message.ConversationID == "" {
		p.Message.ConversationID = p.ConversationID
	}
	e.Thread.ApplyIncoming(p.Message)
	e.Directory.ApplyIncomingMessage(p.Message.ConversationID, p.Message)
}

// onNewMessage handles the notification variant for conversations not
// currently open; only the directory cares.
func (e *Engine) onNewMessage(data json.RawMessage) {
	var p realtime.MessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		e.log.Warn("bad new-message payload", zap.Error(err))
		return
	}
	if p.Message.ConversationID == "" {
		p.Message.ConversationID = p.ConversationID
	}
	e.Directory.ApplyIncomingMessage(p.Message.ConversationID, p.Message)
}

func (e *Engine) onMessagesRead(data json.RawMessage) {
	var p realtime.MessagesReadPayload
	if err := json.Unmarshal(data, &p); err != nil {
		e.log.Warn("bad messages-read payload", zap.Error(err))
		return
	}
	readAt := time.Now().UTC()
	if p.ReadAt > 0 {
		readAt = time.Unix(p.ReadAt, 0).UTC()
	}
	e.Thread.ApplyReadReceipts(p.ConversationID, p.MessageIDs, readAt)
}

func (e *Engine) onUserTyping(data json.RawMessage) {
	var p realtime.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	if p.UserID == e.localUser {
		return
	}
	e.Typing.Start(p.ConversationID, p.UserID)
}

func (e *Engine) onUserStoppedTyping(data json.RawMessage) {
	var p realtime.TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	e.Typing.Stop(p.ConversationID, p.UserID)
}

func (e *Engine) onOnlineStatus(data json.RawMessage) {
	var p realtime.OnlineStatusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	e.Presence.Apply(p.Statuses)
}
