package redisx

import "time"

const (
	// Cache sale by id: sale:{sale_id} -> JSON sales.Sale
	KeySale = "sale:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLSaleCache = 5 * time.Minute
	TTLDedup     = 48 * time.Hour
)
