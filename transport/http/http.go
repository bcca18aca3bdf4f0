// Package http publishes messages as HTTP POST requests through
// watermill-http. The topic is appended to the configured base URL.
package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/retailstream/transport"
)

const TransportName = "http"

// DefaultTimeout bounds each request.
const DefaultTimeout = 10 * time.Second

var ErrURLRequired = errors.New("http: publisher url is required")

// Client is shared by the publisher and the probe. Override it for testing.
var Client = &nethttp.Client{Timeout: DefaultTimeout}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

func init() {
	Register()
}

func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// Build creates a webhook publisher. Non-2xx responses fail the publish.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Sink, error) {
	baseURL := cfg.GetHTTPPublisherURL()
	if baseURL == "" {
		return transport.Sink{}, ErrURLRequired
	}

	publisher, err := PublisherFactory(http.PublisherConfig{
		MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
			return http.DefaultMarshalMessageFunc(TopicURL(baseURL, topic), msg)
		},
		Client: Client,
	}, logger)
	if err != nil {
		return transport.Sink{}, err
	}

	return transport.Sink{
		Publisher:    publisher,
		Capabilities: transport.HTTPCapabilities,
		Probe:        Probe(Client, baseURL),
	}, nil
}

// TopicURL joins base and topic with exactly one slash.
func TopicURL(base, topic string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(topic, "/")
}

// Probe sends a HEAD request to base. Any answer below 500 means the
// endpoint is up; routing errors like 404 or 405 are expected for HEAD.
func Probe(client *nethttp.Client, base string) transport.ProbeFunc {
	return func(ctx context.Context) error {
		req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodHead, base, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= nethttp.StatusInternalServerError {
			return fmt.Errorf("http: probe %s returned %s", base, resp.Status)
		}
		return nil
	}
}
