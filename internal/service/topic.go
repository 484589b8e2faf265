package service

import "fmt"

// Topic is one of the six webhook topics the service subscribes to.
// The set is closed: anything else fails ParseTopic.
type Topic string

const (
	TopicCheckoutCreated Topic = "checkouts/create"
	TopicCheckoutUpdated Topic = "checkouts/update"
	TopicOrderCreated    Topic = "orders/create"
	TopicCartCreated     Topic = "carts/create"
	TopicCartUpdated     Topic = "carts/update"
	TopicAppUninstalled  Topic = "app/uninstalled"
)

// AllTopics returns the topics the service provisions subscriptions for
func AllTopics() []Topic {
	return []Topic{
		TopicCheckoutCreated,
		TopicCheckoutUpdated,
		TopicOrderCreated,
		TopicCartCreated,
		TopicCartUpdated,
		TopicAppUninstalled,
	}
}

// ParseTopic maps a topic string onto the closed set
func ParseTopic(s string) (Topic, error) {
	topic := Topic(s)
	switch topic {
	case TopicCheckoutCreated, TopicCheckoutUpdated, TopicOrderCreated,
		TopicCartCreated, TopicCartUpdated, TopicAppUninstalled:
		return topic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTopic, s)
}
