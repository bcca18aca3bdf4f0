package retailstream

import (
	"github.com/drblury/retailstream/internal/runtime/breaker"
	"github.com/drblury/retailstream/internal/runtime/classify"
	"github.com/drblury/retailstream/internal/runtime/codec"
	configpkg "github.com/drblury/retailstream/internal/runtime/config"
	"github.com/drblury/retailstream/internal/runtime/dlq"
	errspkg "github.com/drblury/retailstream/internal/runtime/errors"
	"github.com/drblury/retailstream/internal/runtime/events"
	"github.com/drblury/retailstream/internal/runtime/generator"
	idspkg "github.com/drblury/retailstream/internal/runtime/ids"
	loggingpkg "github.com/drblury/retailstream/internal/runtime/logging"
	metadatapkg "github.com/drblury/retailstream/internal/runtime/metadata"
	"github.com/drblury/retailstream/internal/runtime/monitor"
	"github.com/drblury/retailstream/internal/runtime/stats"
	"github.com/drblury/retailstream/internal/runtime/streamer"
	transportpkg "github.com/drblury/retailstream/internal/runtime/transport"
	newtransport "github.com/drblury/retailstream/transport"
)

type (
	Config          = configpkg.Config
	StreamingConfig = configpkg.StreamingConfig
	BreakerConfig   = configpkg.BreakerConfig

	Streamer      = streamer.Streamer
	Dependencies  = streamer.Dependencies
	Session       = streamer.Session
	State         = streamer.State
	ControlResult = streamer.ControlResult
	Clock         = streamer.Clock
	SystemClock   = streamer.SystemClock

	// Flush lifecycle hooks
	FlushHooks   = streamer.FlushHooks
	FlushContext = streamer.FlushContext

	Envelope  = events.Envelope
	EventType = events.EventType
	Payload   = events.Payload

	ReceiptCreatedPayload      = events.ReceiptCreatedPayload
	ReceiptLineAddedPayload    = events.ReceiptLineAddedPayload
	PaymentProcessedPayload    = events.PaymentProcessedPayload
	InventoryUpdatedPayload    = events.InventoryUpdatedPayload
	StockoutDetectedPayload    = events.StockoutDetectedPayload
	ReorderTriggeredPayload    = events.ReorderTriggeredPayload
	CustomerEnteredPayload     = events.CustomerEnteredPayload
	CustomerZoneChangedPayload = events.CustomerZoneChangedPayload
	BLEPingDetectedPayload     = events.BLEPingDetectedPayload
	TruckArrivedPayload        = events.TruckArrivedPayload
	TruckDepartedPayload       = events.TruckDepartedPayload
	StoreOpenedPayload         = events.StoreOpenedPayload
	StoreClosedPayload         = events.StoreClosedPayload
	AdImpressionPayload        = events.AdImpressionPayload
	PromotionAppliedPayload    = events.PromotionAppliedPayload
	OnlineOrderCreatedPayload  = events.OnlineOrderCreatedPayload

	ContentGenerator   = generator.ContentGenerator
	GeneratorFunc      = generator.Func
	SyntheticGenerator = generator.Synthetic
	SyntheticConfig    = generator.Config

	Statistics     = stats.Statistics
	LatencyMetrics = stats.LatencyMetrics
	HealthStatus   = monitor.HealthStatus
	PauseStats     = monitor.PauseStats

	DLQEntry       = dlq.Entry
	DLQSummary     = dlq.Summary
	DLQRetryResult = dlq.RetryResult

	// Error classification
	StreamingError = classify.StreamingError
	ErrorCategory  = classify.Category
	ErrorSeverity  = classify.Severity

	CircuitBreakerState = breaker.Snapshot
	BreakerState        = breaker.State

	Transport        = transportpkg.Transport
	TransportHealth  = transportpkg.Health
	TransportFactory = transportpkg.Factory
	FactoryFunc      = transportpkg.FactoryFunc
	NoopTransport    = transportpkg.Noop

	// Modular transport types
	TransportBuilder      = newtransport.Builder
	TransportConfig       = newtransport.Config
	TransportRegistry     = newtransport.Registry
	TransportSink         = newtransport.Sink
	TransportCapabilities = newtransport.Capabilities

	Codec    = codec.Codec
	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger
)

var (
	NewStreamer    = streamer.New
	LoadConfig     = configpkg.Load
	DefaultConfig  = configpkg.Default
	ValidateConfig = configpkg.ValidateConfig

	NewEnvelope        = events.New
	AllEventTypes      = events.AllEventTypes
	NewSynthetic       = generator.NewSynthetic
	LoggingHooks       = streamer.LoggingHooks
	AlertingHooks      = streamer.AlertingHooks
	ClassifyError      = classify.Classify
	CriticalError      = classify.Critical
	TimeoutError       = classify.Timeout
	PermissionError    = classify.Permission
	ThrottledError     = classify.Throttled
	SerializationError = classify.Serialization

	DefaultTransportFactory  = transportpkg.DefaultFactory
	NewRegistryFactory       = transportpkg.NewRegistryFactory
	DefaultTransportRegistry = newtransport.DefaultRegistry
	NewTransportRegistry     = newtransport.NewRegistry
	RegisterTransport        = newtransport.RegisterWithCapabilities
	GetCapabilities          = newtransport.GetCapabilities

	NewCodec             = codec.New
	NewSlogLogger        = loggingpkg.NewSlogLogger
	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	DiscardLogger        = loggingpkg.Discard
	MetadataFor          = metadatapkg.FromEnvelope
	CreateULID           = idspkg.CreateULID
	NewSessionID         = idspkg.NewSessionID

	ErrCircuitOpen      = breaker.ErrCircuitOpen
	ErrTimeout          = classify.ErrTimeout
	ErrThrottled        = classify.ErrThrottled
	ErrPermissionDenied = classify.ErrPermissionDenied
	ErrSerialization    = classify.ErrSerialization
	ErrUnknownCodec     = errspkg.ErrUnknownCodec

	ErrConfigRequired    = errspkg.ErrConfigRequired
	ErrLoggerRequired    = errspkg.ErrLoggerRequired
	ErrTransportRequired = errspkg.ErrTransportRequired
	ErrGeneratorRequired = errspkg.ErrGeneratorRequired
	ErrPublisherRequired = errspkg.ErrPublisherRequired
	ErrAlreadyStreaming  = errspkg.ErrAlreadyStreaming
	ErrSessionFinished   = errspkg.ErrSessionFinished
)

// Lifecycle states.
const (
	StateIdle      = streamer.StateIdle
	StateStreaming = streamer.StateStreaming
	StatePaused    = streamer.StatePaused
	StateStopped   = streamer.StateStopped
)

// Error categories and severities.
const (
	CategoryNetwork        = classify.CategoryNetwork
	CategoryAuthentication = classify.CategoryAuthentication
	CategoryThrottling     = classify.CategoryThrottling
	CategorySerialization  = classify.CategorySerialization
	CategoryUnknown        = classify.CategoryUnknown

	SeverityTransient = classify.SeverityTransient
	SeverityPermanent = classify.SeverityPermanent
	SeverityCritical  = classify.SeverityCritical
)

// Event types.
const (
	ReceiptCreated      = events.ReceiptCreated
	ReceiptLineAdded    = events.ReceiptLineAdded
	PaymentProcessed    = events.PaymentProcessed
	InventoryUpdated    = events.InventoryUpdated
	StockoutDetected    = events.StockoutDetected
	ReorderTriggered    = events.ReorderTriggered
	CustomerEntered     = events.CustomerEntered
	CustomerZoneChanged = events.CustomerZoneChanged
	BLEPingDetected     = events.BLEPingDetected
	TruckArrived        = events.TruckArrived
	TruckDeparted       = events.TruckDeparted
	StoreOpened         = events.StoreOpened
	StoreClosed         = events.StoreClosed
	AdImpression        = events.AdImpression
	PromotionApplied    = events.PromotionApplied
	OnlineOrderCreated  = events.OnlineOrderCreated
)
