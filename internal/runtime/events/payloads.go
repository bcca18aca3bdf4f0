package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payload is implemented only by the payload structs in this package, which
// keeps the set of envelope contents closed.
type Payload interface {
	EventType() EventType
	sealed()
}

type ReceiptCreatedPayload struct {
	StoreID    string          `json:"store_id"`
	CustomerID string          `json:"customer_id,omitempty"`
	ReceiptID  string          `json:"receipt_id"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
	TenderType string          `json:"tender_type"`
	ItemCount  int             `json:"item_count"`
}

type ReceiptLineAddedPayload struct {
	ReceiptID     string          `json:"receipt_id"`
	LineNumber    int             `json:"line_number"`
	ProductID     string          `json:"product_id"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ExtendedPrice decimal.Decimal `json:"extended_price"`
	PromoCode     string          `json:"promo_code,omitempty"`
}

type PaymentProcessedPayload struct {
	ReceiptID     string          `json:"receipt_id"`
	TransactionID string          `json:"transaction_id"`
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
}

type InventoryUpdatedPayload struct {
	LocationID    string `json:"location_id"`
	ProductID     string `json:"product_id"`
	QuantityDelta int    `json:"quantity_delta"`
	Reason        string `json:"reason"`
}

type StockoutDetectedPayload struct {
	StoreID           string `json:"store_id"`
	ProductID         string `json:"product_id"`
	LastKnownQuantity int    `json:"last_known_quantity"`
}

type ReorderTriggeredPayload struct {
	StoreID         string `json:"store_id"`
	ProductID       string `json:"product_id"`
	CurrentQuantity int    `json:"current_quantity"`
	ReorderQuantity int    `json:"reorder_quantity"`
	Priority        string `json:"priority"`
}

type CustomerEnteredPayload struct {
	StoreID       string `json:"store_id"`
	SensorID      string `json:"sensor_id"`
	Zone          string `json:"zone"`
	CustomerCount int    `json:"customer_count"`
}

type CustomerZoneChangedPayload struct {
	StoreID       string `json:"store_id"`
	CustomerBLEID string `json:"customer_ble_id"`
	FromZone      string `json:"from_zone"`
	ToZone        string `json:"to_zone"`
}

type BLEPingDetectedPayload struct {
	StoreID       string `json:"store_id"`
	BeaconID      string `json:"beacon_id"`
	CustomerBLEID string `json:"customer_ble_id"`
	RSSI          int    `json:"rssi"`
	Zone          string `json:"zone"`
}

type TruckArrivedPayload struct {
	TruckID    string `json:"truck_id"`
	LocationID string `json:"location_id"`
	ShipmentID string `json:"shipment_id"`
	UnitCount  int    `json:"unit_count"`
}

type TruckDepartedPayload struct {
	TruckID    string `json:"truck_id"`
	LocationID string `json:"location_id"`
	ShipmentID string `json:"shipment_id"`
}

type StoreOpenedPayload struct {
	StoreID       string    `json:"store_id"`
	OperationTime time.Time `json:"operation_time"`
}

type StoreClosedPayload struct {
	StoreID       string    `json:"store_id"`
	OperationTime time.Time `json:"operation_time"`
}

type AdImpressionPayload struct {
	Channel      string          `json:"channel"`
	CampaignID   string          `json:"campaign_id"`
	CreativeID   string          `json:"creative_id"`
	ImpressionID string          `json:"impression_id"`
	CustomerAdID string          `json:"customer_ad_id,omitempty"`
	DeviceType   string          `json:"device_type"`
	Cost         decimal.Decimal `json:"cost"`
}

type PromotionAppliedPayload struct {
	ReceiptID      string          `json:"receipt_id"`
	PromoCode      string          `json:"promo_code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ProductCount   int             `json:"product_count"`
}

type OnlineOrderCreatedPayload struct {
	OrderID         string          `json:"order_id"`
	CustomerID      string          `json:"customer_id"`
	FulfillmentMode string          `json:"fulfillment_mode"`
	NodeID          string          `json:"node_id"`
	ItemCount       int             `json:"item_count"`
	Total           decimal.Decimal `json:"total"`
}

func (ReceiptCreatedPayload) EventType() EventType      { return ReceiptCreated }
func (ReceiptLineAddedPayload) EventType() EventType    { return ReceiptLineAdded }
func (PaymentProcessedPayload) EventType() EventType    { return PaymentProcessed }
func (InventoryUpdatedPayload) EventType() EventType    { return InventoryUpdated }
func (StockoutDetectedPayload) EventType() EventType    { return StockoutDetected }
func (ReorderTriggeredPayload) EventType() EventType    { return ReorderTriggered }
func (CustomerEnteredPayload) EventType() EventType     { return CustomerEntered }
func (CustomerZoneChangedPayload) EventType() EventType { return CustomerZoneChanged }
func (BLEPingDetectedPayload) EventType() EventType     { return BLEPingDetected }
func (TruckArrivedPayload) EventType() EventType        { return TruckArrived }
func (TruckDepartedPayload) EventType() EventType       { return TruckDeparted }
func (StoreOpenedPayload) EventType() EventType         { return StoreOpened }
func (StoreClosedPayload) EventType() EventType         { return StoreClosed }
func (AdImpressionPayload) EventType() EventType        { return AdImpression }
func (PromotionAppliedPayload) EventType() EventType    { return PromotionApplied }
func (OnlineOrderCreatedPayload) EventType() EventType  { return OnlineOrderCreated }

func (ReceiptCreatedPayload) sealed()      {}
func (ReceiptLineAddedPayload) sealed()    {}
func (PaymentProcessedPayload) sealed()    {}
func (InventoryUpdatedPayload) sealed()    {}
func (StockoutDetectedPayload) sealed()    {}
func (ReorderTriggeredPayload) sealed()    {}
func (CustomerEnteredPayload) sealed()     {}
func (CustomerZoneChangedPayload) sealed() {}
func (BLEPingDetectedPayload) sealed()     {}
func (TruckArrivedPayload) sealed()        {}
func (TruckDepartedPayload) sealed()       {}
func (StoreOpenedPayload) sealed()         {}
func (StoreClosedPayload) sealed()         {}
func (AdImpressionPayload) sealed()        {}
func (PromotionAppliedPayload) sealed()    {}
func (OnlineOrderCreatedPayload) sealed()  {}
