package events

// EventType identifies an event on the bus, format: domain.action
type EventType string

// Message events
const (
	EventMessageSent    EventType = "message.sent"
	EventMessageUpdated EventType = "message.updated"
	EventMessageDeleted EventType = "message.deleted"
)

// Reaction events
const (
	EventReactionAdded   EventType = "reaction.added"
	EventReactionRemoved EventType = "reaction.removed"
)

// Conversation and participant events
const (
	EventConversationCreated EventType = "conversation.created"
	EventConversationRead    EventType = "conversation.read"
	EventParticipantAdded    EventType = "participant.added"
	EventParticipantRemoved  EventType = "participant.removed"
)

// Typing and presence events (ephemeral, fire-and-forget)
const (
	EventTypingStarted   EventType = "typing.started"
	EventTypingStopped   EventType = "typing.stopped"
	EventPresenceChanged EventType = "presence.changed"
)

// Block events
const (
	EventUserBlocked   EventType = "user.blocked"
	EventUserUnblocked EventType = "user.unblocked"
)

// Redis channel prefixes
const (
	ChannelPrefixUser = "channel:user:"
	ChannelPatternAll = "channel:user:*"
)
