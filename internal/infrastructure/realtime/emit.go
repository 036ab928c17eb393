package realtime

// Semantic wrappers over Emit for each outbound protocol operation. The
// tracker packages declare narrow interfaces these satisfy, so trackers stay
// testable without a live session.

// SendMessage emits a send event for the conversation.
func (s *Session) SendMessage(conversationID, body, dedupeKey string) error {
	return s.Emit(EventSend, SendPayload{
		ConversationID: conversationID,
		Body:           body,
		DedupeKey:      dedupeKey,
	})
}

// MarkRead reports the listed messages as seen by the local user.
func (s *Session) MarkRead(conversationID string, messageIDs []string) error {
	return s.Emit(EventMarkRead, MarkReadPayload{
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
	})
}

// TypingStart signals the local user began composing in the conversation.
func (s *Session) TypingStart(conversationID string) error {
	return s.Emit(EventTypingStart, RoomPayload{ConversationID: conversationID})
}

// TypingStop signals the local user stopped composing in the conversation.
func (s *Session) TypingStop(conversationID string) error {
	return s.Emit(EventTypingStop, RoomPayload{ConversationID: conversationID})
}

// QueryOnline requests a presence snapshot for the given users.
func (s *Session) QueryOnline(userIDs []string) error {
	return s.Emit(EventQueryOnline, QueryOnlinePayload{UserIDs: userIDs})
}
