package retailstream

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConstructorExportsPropagateErrors(t *testing.T) {
	if _, err := NewStreamer(nil, Dependencies{}); !errors.Is(err, ErrConfigRequired) {
		t.Fatalf("expected config required error, got %v", err)
	}

	conf := DefaultConfig()
	if _, err := NewStreamer(&conf, Dependencies{Logger: DiscardLogger()}); !errors.Is(err, ErrGeneratorRequired) {
		t.Fatalf("expected generator required error, got %v", err)
	}
}

func TestSessionThroughExports(t *testing.T) {
	conf := DefaultConfig()
	conf.Streaming.EmitIntervalMs = 5
	conf.Streaming.BatchTimeoutMs = 20
	conf.ShutdownTimeout = time.Second

	gen, err := NewSynthetic(SyntheticConfig{Seed: 3, BurstSize: 5})
	if err != nil {
		t.Fatalf("unexpected generator error: %v", err)
	}
	tr := &NoopTransport{}
	s, err := NewStreamer(&conf, Dependencies{Generator: gen, Transport: tr, Logger: DiscardLogger()})
	if err != nil {
		t.Fatalf("unexpected streamer error: %v", err)
	}

	if err := s.Run(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if s.State() != StateStopped {
		t.Fatalf("expected %s, got %s", StateStopped, s.State())
	}
	st := s.GetStatistics()
	if st.EventsGenerated == 0 || st.EventsSentSuccessfully != st.EventsGenerated {
		t.Fatalf("expected every generated event to be sent, got %+v", st)
	}
	if uint64(tr.Sent()) != st.EventsSentSuccessfully {
		t.Fatalf("transport saw %d events, statistics report %d", tr.Sent(), st.EventsSentSuccessfully)
	}
}

func TestClassifyExports(t *testing.T) {
	se := ClassifyError(ThrottledError(errors.New("slow down")))
	if se.Category != CategoryThrottling {
		t.Fatalf("expected %s, got %s", CategoryThrottling, se.Category)
	}
	if !errors.Is(se, ErrThrottled) {
		t.Fatal("expected classified error to wrap ErrThrottled")
	}

	if sev := CriticalError(errors.New("boom")).Severity; sev != SeverityCritical {
		t.Fatalf("expected %s, got %s", SeverityCritical, sev)
	}
}

func TestMetadataExport(t *testing.T) {
	env := NewEnvelope(StoreOpenedPayload{StoreID: "ST001"}, time.Now())
	md := MetadataFor(env)
	if md["event_type"] != string(StoreOpened) {
		t.Fatalf("expected event_type header, got %#v", md)
	}
}

func TestEventTypeExports(t *testing.T) {
	if len(AllEventTypes()) != 16 {
		t.Fatalf("expected 16 event types, got %d", len(AllEventTypes()))
	}
}

func TestTransportRegistryExports(t *testing.T) {
	if !DefaultTransportRegistry.Has("channel") {
		t.Fatal("expected channel transport to be registered")
	}
	if caps := GetCapabilities("kafka"); !caps.SupportsOrdering {
		t.Fatalf("expected kafka to support ordering, got %+v", caps)
	}
}
