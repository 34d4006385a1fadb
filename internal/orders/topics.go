package orders

const (
	TopicOrderPlaced = "orders.placed"
	TopicOrderStatus = "orders.status"
	TopicTableStatus = "tables.status"
)

// PartitionKey keeps every event of one aggregate on the same partition.
func PartitionKey(id string) []byte { return []byte(id) }
