package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/drblury/retailstream/internal/runtime/events"
)

// Defaults for a Synthetic generator built from a zero Config.
const (
	DefaultBurstSize = 10
	DefaultStores    = 5
	DefaultCustomers = 200
	DefaultProducts  = 50

	startingStock   = 40
	reorderPoint    = 5
	reorderQuantity = 60
)

var (
	taxRate = decimal.RequireFromString("0.08")

	zones        = []string{"entrance", "produce", "dairy", "bakery", "electronics", "checkout"}
	tenders      = []string{"CARD", "CASH", "MOBILE", "GIFT_CARD"}
	adChannels   = []string{"search", "social", "display", "in_store_screen"}
	devices      = []string{"mobile", "desktop", "tablet", "signage"}
	fulfillments = []string{"SHIP_TO_HOME", "BOPIS", "CURBSIDE", "SHIP_FROM_STORE"}
	promoCodes   = []string{"SPRING10", "BOGO", "LOYALTY5"}
)

// Config sizes the synthetic world.
type Config struct {
	// Seed makes the content of every burst reproducible. Zero seeds from
	// the clock.
	Seed uint64
	// BurstSize is the minimum number of events per burst. Scenarios are
	// never split, so a burst may run a few events over.
	BurstSize int
	Stores    int
	Customers int
	Products  int
}

type product struct {
	id    string
	price decimal.Decimal
}

type stockKey struct {
	store   string
	product int
}

// Synthetic invents a plausible retail day: stores open, customers walk the
// aisles and buy, trucks restock shelves, ads are served and online orders
// arrive. Safe for concurrent use.
type Synthetic struct {
	mu sync.Mutex

	rng       *rand.Rand
	burstSize int
	stores    []string
	customers []string
	products  []product

	open  map[string]bool
	stock map[stockKey]int
	seq   uint64
}

// NewSynthetic builds a generator. Every store starts closed with every
// product stocked.
func NewSynthetic(cfg Config) (*Synthetic, error) {
	if cfg.BurstSize < 0 || cfg.Stores < 0 || cfg.Customers < 0 || cfg.Products < 0 {
		return nil, errors.New("generator: sizes cannot be negative")
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.Stores == 0 {
		cfg.Stores = DefaultStores
	}
	if cfg.Customers == 0 {
		cfg.Customers = DefaultCustomers
	}
	if cfg.Products == 0 {
		cfg.Products = DefaultProducts
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	s := &Synthetic{
		rng:       rng,
		burstSize: cfg.BurstSize,
		open:      make(map[string]bool, cfg.Stores),
		stock:     make(map[stockKey]int, cfg.Stores*cfg.Products),
	}
	for i := range cfg.Stores {
		s.stores = append(s.stores, fmt.Sprintf("ST%03d", i+1))
	}
	for i := range cfg.Customers {
		s.customers = append(s.customers, fmt.Sprintf("CUST%05d", i+1))
	}
	for i := range cfg.Products {
		cents := 99 + rng.IntN(4900)
		s.products = append(s.products, product{
			id:    fmt.Sprintf("SKU%05d", i+1),
			price: decimal.NewFromInt(int64(cents)).Shift(-2),
		})
	}
	for _, store := range s.stores {
		for p := range s.products {
			s.stock[stockKey{store, p}] = startingStock
		}
	}
	return s, nil
}

// Init checks the world has something to generate from.
func (s *Synthetic) Init(context.Context) error {
	if len(s.stores) == 0 || len(s.products) == 0 {
		return errors.New("generator: no stores or products")
	}
	return nil
}

// GenerateBurst returns at least BurstSize events stamped at now. The first
// burst opens every store.
func (s *Synthetic) GenerateBurst(now time.Time) ([]events.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]events.Envelope, 0, s.burstSize+8)
	for _, store := range s.stores {
		if !s.open[store] {
			s.open[store] = true
			out = append(out, events.New(events.StoreOpenedPayload{StoreID: store, OperationTime: now.UTC()}, now))
		}
	}

	for len(out) < s.burstSize {
		switch roll := s.rng.IntN(100); {
		case roll < 35:
			out = s.sale(out, now)
		case roll < 60:
			out = s.footTraffic(out, now)
		case roll < 72:
			out = s.delivery(out, now)
		case roll < 86:
			out = s.impression(out, now)
		default:
			out = s.onlineOrder(out, now)
		}
	}
	return out, nil
}

func (s *Synthetic) next(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%08d", prefix, s.seq)
}

func pick[T any](rng *rand.Rand, from []T) T {
	return from[rng.IntN(len(from))]
}

func (s *Synthetic) sale(out []events.Envelope, now time.Time) []events.Envelope {
	store := pick(s.rng, s.stores)
	receiptID := s.next("RCP")
	lineCount := 1 + s.rng.IntN(4)

	subtotal := decimal.Zero
	var lines []events.ReceiptLineAddedPayload
	var sold []int
	for n := range lineCount {
		p := s.rng.IntN(len(s.products))
		qty := 1 + s.rng.IntN(3)
		prod := s.products[p]
		extended := prod.price.Mul(decimal.NewFromInt(int64(qty)))
		subtotal = subtotal.Add(extended)

		line := events.ReceiptLineAddedPayload{
			ReceiptID:     receiptID,
			LineNumber:    n + 1,
			ProductID:     prod.id,
			Quantity:      qty,
			UnitPrice:     prod.price,
			ExtendedPrice: extended,
		}
		if s.rng.IntN(10) == 0 {
			line.PromoCode = pick(s.rng, promoCodes)
		}
		lines = append(lines, line)
		sold = append(sold, p)
	}
	tax := subtotal.Mul(taxRate).Round(2)
	total := subtotal.Add(tax)

	var customer string
	if s.rng.IntN(2) == 0 {
		customer = pick(s.rng, s.customers)
	}
	tender := pick(s.rng, tenders)
	receipt := events.New(events.ReceiptCreatedPayload{
		StoreID:    store,
		CustomerID: customer,
		ReceiptID:  receiptID,
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      total,
		TenderType: tender,
		ItemCount:  lineCount,
	}, now)
	out = append(out, receipt)

	for i, line := range lines {
		out = append(out, events.New(line, now).WithParent(receipt.TraceID))
		if line.PromoCode != "" {
			discount := line.ExtendedPrice.Mul(decimal.RequireFromString("0.10")).Round(2)
			out = append(out, events.New(events.PromotionAppliedPayload{
				ReceiptID:      receiptID,
				PromoCode:      line.PromoCode,
				DiscountAmount: discount,
				ProductCount:   line.Quantity,
			}, now).WithParent(receipt.TraceID))
		}
		out = s.deplete(out, now, store, sold[i], line.Quantity, receipt.TraceID)
	}

	out = append(out, events.New(events.PaymentProcessedPayload{
		ReceiptID:     receiptID,
		TransactionID: s.next("TXN"),
		PaymentMethod: tender,
		Amount:        total,
		Status:        "APPROVED",
	}, now).WithParent(receipt.TraceID))
	return out
}

// deplete books a sale against shelf stock and raises stockout and reorder
// events when the shelf runs low.
func (s *Synthetic) deplete(out []events.Envelope, now time.Time, store string, p, qty int, parent string) []events.Envelope {
	key := stockKey{store, p}
	before := s.stock[key]
	after := max(before-qty, 0)
	s.stock[key] = after

	prodID := s.products[p].id
	out = append(out, events.New(events.InventoryUpdatedPayload{
		LocationID:    store,
		ProductID:     prodID,
		QuantityDelta: after - before,
		Reason:        "SALE",
	}, now).WithParent(parent))

	if after == 0 && before > 0 {
		out = append(out, events.New(events.StockoutDetectedPayload{
			StoreID:           store,
			ProductID:         prodID,
			LastKnownQuantity: before,
		}, now).WithParent(parent))
	}
	crossed := after <= reorderPoint && before > reorderPoint
	if crossed || (after == 0 && before > 0) {
		priority := "NORMAL"
		if after == 0 {
			priority = "URGENT"
		}
		out = append(out, events.New(events.ReorderTriggeredPayload{
			StoreID:         store,
			ProductID:       prodID,
			CurrentQuantity: after,
			ReorderQuantity: reorderQuantity,
			Priority:        priority,
		}, now).WithParent(parent))
	}
	return out
}

func (s *Synthetic) footTraffic(out []events.Envelope, now time.Time) []events.Envelope {
	store := pick(s.rng, s.stores)
	bleID := fmt.Sprintf("BLE%05d", 1+s.rng.IntN(len(s.customers)))

	entered := events.New(events.CustomerEnteredPayload{
		StoreID:       store,
		SensorID:      fmt.Sprintf("%s-DOOR-%d", store, 1+s.rng.IntN(2)),
		Zone:          zones[0],
		CustomerCount: 1 + s.rng.IntN(4),
	}, now)
	out = append(out, entered)

	to := pick(s.rng, zones[1:])
	out = append(out, events.New(events.CustomerZoneChangedPayload{
		StoreID:       store,
		CustomerBLEID: bleID,
		FromZone:      zones[0],
		ToZone:        to,
	}, now).WithParent(entered.TraceID))

	return append(out, events.New(events.BLEPingDetectedPayload{
		StoreID:       store,
		BeaconID:      fmt.Sprintf("%s-BCN-%s", store, to),
		CustomerBLEID: bleID,
		RSSI:          -40 - s.rng.IntN(50),
		Zone:          to,
	}, now).WithParent(entered.TraceID))
}

func (s *Synthetic) delivery(out []events.Envelope, now time.Time) []events.Envelope {
	store := pick(s.rng, s.stores)
	truck := fmt.Sprintf("TRK%03d", 1+s.rng.IntN(40))
	shipment := s.next("SHP")

	restock := 1 + s.rng.IntN(3)
	units := 0
	var updates []events.InventoryUpdatedPayload
	for range restock {
		p := s.rng.IntN(len(s.products))
		qty := 10 + s.rng.IntN(50)
		s.stock[stockKey{store, p}] += qty
		units += qty
		updates = append(updates, events.InventoryUpdatedPayload{
			LocationID:    store,
			ProductID:     s.products[p].id,
			QuantityDelta: qty,
			Reason:        "RECEIVING",
		})
	}

	arrived := events.New(events.TruckArrivedPayload{
		TruckID:    truck,
		LocationID: store,
		ShipmentID: shipment,
		UnitCount:  units,
	}, now)
	out = append(out, arrived)
	for _, u := range updates {
		out = append(out, events.New(u, now).WithParent(arrived.TraceID))
	}
	return append(out, events.New(events.TruckDepartedPayload{
		TruckID:    truck,
		LocationID: store,
		ShipmentID: shipment,
	}, now).WithParent(arrived.TraceID))
}

func (s *Synthetic) impression(out []events.Envelope, now time.Time) []events.Envelope {
	p := events.AdImpressionPayload{
		Channel:      pick(s.rng, adChannels),
		CampaignID:   fmt.Sprintf("CMP%03d", 1+s.rng.IntN(20)),
		CreativeID:   fmt.Sprintf("CRV%04d", 1+s.rng.IntN(200)),
		ImpressionID: s.next("IMP"),
		DeviceType:   pick(s.rng, devices),
		Cost:         decimal.NewFromInt(int64(1 + s.rng.IntN(250))).Shift(-3),
	}
	if s.rng.IntN(3) == 0 {
		p.CustomerAdID = pick(s.rng, s.customers)
	}
	return append(out, events.New(p, now))
}

func (s *Synthetic) onlineOrder(out []events.Envelope, now time.Time) []events.Envelope {
	items := 1 + s.rng.IntN(6)
	total := decimal.Zero
	for range items {
		total = total.Add(pick(s.rng, s.products).price)
	}
	return append(out, events.New(events.OnlineOrderCreatedPayload{
		OrderID:         s.next("ORD"),
		CustomerID:      pick(s.rng, s.customers),
		FulfillmentMode: pick(s.rng, fulfillments),
		NodeID:          pick(s.rng, s.stores),
		ItemCount:       items,
		Total:           total.Add(total.Mul(taxRate).Round(2)),
	}, now))
}

// Finish marks every open store closed and returns the store_closed events.
func (s *Synthetic) Finish(now time.Time) []events.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []events.Envelope
	for _, store := range s.stores {
		if s.open[store] {
			s.open[store] = false
			out = append(out, events.New(events.StoreClosedPayload{StoreID: store, OperationTime: now.UTC()}, now))
		}
	}
	return out
}
