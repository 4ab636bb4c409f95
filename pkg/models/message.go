package models

import "time"

// Message is a single unit of broker communication between agents.
// A message with an empty Recipient is broadcast to all subscribers of its
// topic; a non-empty Recipient targets one agent by name regardless of topic.
type Message struct {
	// ID is the unique identifier for this message.
	ID string `json:"id"`
	// Topic is the channel this message was published on.
	Topic string `json:"topic"`
	// Sender is the name of the publishing agent or component.
	Sender string `json:"sender"`
	// Recipient is the target agent name for point-to-point delivery.
	// Empty means broadcast to topic subscribers.
	Recipient string `json:"recipient,omitempty"`
	// Payload is the opaque message body.
	Payload any `json:"payload,omitempty"`
	// Timestamp is when the message was published.
	Timestamp time.Time `json:"timestamp"`
}

// Broadcast returns true if the message has no explicit recipient.
func (m Message) Broadcast() bool {
	return m.Recipient == ""
}

// AgentStatusTopic is the topic the orchestrator publishes lifecycle
// broadcasts on when an agent reaches a terminal state.
func AgentStatusTopic(agent string) string {
	return "agent/" + agent + "/status"
}
