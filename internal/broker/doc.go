// Package broker provides the in-process message bus agents use to exchange
// notifications without referencing each other directly.
//
// Delivery is best-effort and at-most-once per subscription: there is no
// persistence and no redelivery. A message published without a recipient is
// broadcast to every subscriber of its topic; a message with a recipient is
// delivered only to subscriptions registered under that agent name,
// regardless of topic. If nobody is subscribed for a point-to-point message
// at publish time it is silently dropped. For a fixed (sender, subscriber)
// pair messages arrive in publish order; no ordering holds across senders.
package broker
