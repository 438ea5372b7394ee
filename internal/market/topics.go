package market

const (
	TopicNotifications = "marketplace.notifications"
)

// Partition key = recipient, so one user's notifications stay ordered.
func PartitionKey(userID string) []byte { return []byte(userID) }
