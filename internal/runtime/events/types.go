// Package events defines the closed set of retail business events carried by
// the streaming engine. Every event kind owns a strongly typed payload; the
// Envelope wraps any known payload together with tracing identifiers.
package events

// EventType names one business event kind. The set is closed: only the
// constants below are valid.
type EventType string

const (
	ReceiptCreated      EventType = "receipt_created"
	ReceiptLineAdded    EventType = "receipt_line_added"
	PaymentProcessed    EventType = "payment_processed"
	InventoryUpdated    EventType = "inventory_updated"
	StockoutDetected    EventType = "stockout_detected"
	ReorderTriggered    EventType = "reorder_triggered"
	CustomerEntered     EventType = "customer_entered"
	CustomerZoneChanged EventType = "customer_zone_changed"
	BLEPingDetected     EventType = "ble_ping_detected"
	TruckArrived        EventType = "truck_arrived"
	TruckDeparted       EventType = "truck_departed"
	StoreOpened         EventType = "store_opened"
	StoreClosed         EventType = "store_closed"
	AdImpression        EventType = "ad_impression"
	PromotionApplied    EventType = "promotion_applied"
	OnlineOrderCreated  EventType = "online_order_created"
)

var allEventTypes = []EventType{
	ReceiptCreated,
	ReceiptLineAdded,
	PaymentProcessed,
	InventoryUpdated,
	StockoutDetected,
	ReorderTriggered,
	CustomerEntered,
	CustomerZoneChanged,
	BLEPingDetected,
	TruckArrived,
	TruckDeparted,
	StoreOpened,
	StoreClosed,
	AdImpression,
	PromotionApplied,
	OnlineOrderCreated,
}

var knownEventTypes = func() map[EventType]struct{} {
	m := make(map[EventType]struct{}, len(allEventTypes))
	for _, t := range allEventTypes {
		m[t] = struct{}{}
	}
	return m
}()

// AllEventTypes returns every known event type in declaration order.
func AllEventTypes() []EventType {
	out := make([]EventType, len(allEventTypes))
	copy(out, allEventTypes)
	return out
}

// IsValid reports whether t belongs to the closed set.
func (t EventType) IsValid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

func (t EventType) String() string { return string(t) }
