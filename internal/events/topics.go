package events

const (
	TopicOrderCreated        = "order.created"
	TopicOrderCancelled      = "order.cancelled"
	TopicOrderCompleted      = "order.completed"
	TopicOrderRejected       = "order.rejected"
	TopicNotificationCreated = "notification.created"
)

// DeadLetterTopic is where a consumer parks messages it gave up on.
func DeadLetterTopic(topic string) string { return topic + ".dlq" }

// PartitionKey keeps every event of one order (or one customer, for
// notifications) on the same partition.
func PartitionKey(id string) []byte { return []byte(id) }
