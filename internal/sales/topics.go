package sales

const TopicSalesEvents = "sales.events"

// Partition key = sale_id, so every event of one sale keeps its order.
func PartitionKey(saleID string) []byte { return []byte(saleID) }
