// Package aws publishes to Amazon SNS through watermill-aws. One SNS topic
// is created per event topic; subscribers (SQS queues, lambdas) are wired
// outside this process.
package aws

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/drblury/retailstream/transport"
)

const TransportName = "aws"

const (
	localstackAccountID = "000000000000"
	awsAccountIDLength  = 12
)

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// TopicResolverFactory allows overriding the topic resolver creation for testing.
var TopicResolverFactory = sns.NewGenerateArnTopicResolver

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return sns.NewPublisher(cfg, logger)
}

// TopicLister is the SNS call the health probe makes.
type TopicLister interface {
	ListTopics(ctx context.Context, in *amazonsns.ListTopicsInput, optFns ...func(*amazonsns.Options)) (*amazonsns.ListTopicsOutput, error)
}

// ClientFactory allows overriding the SNS client used by the probe.
var ClientFactory = func(cfg aws.Config, optFns ...func(*amazonsns.Options)) TopicLister {
	return amazonsns.NewFromConfig(cfg, optFns...)
}

func init() {
	Register()
}

func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.AWSCapabilities)
}

// Build loads the AWS configuration and creates an SNS publisher. A custom
// endpoint (LocalStack) is honoured by both the publisher and the probe.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Sink, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg, logger)
	if err != nil {
		return transport.Sink{}, err
	}

	accountID, region := resolveAccountAndRegion(cfg, logger, awsCfg.Region)
	logger.Info("Creating SNS publisher", watermill.LogFields{
		"account_id":      accountID,
		"region":          region,
		"custom_endpoint": cfg.GetAWSEndpoint() != "",
	})

	topicResolver, err := TopicResolverFactory(accountID, region)
	if err != nil {
		return transport.Sink{}, fmt.Errorf("aws: topic resolver: %w", err)
	}

	optFns, err := endpointOptions(cfg)
	if err != nil {
		return transport.Sink{}, err
	}

	publisher, err := PublisherFactory(sns.PublisherConfig{
		TopicResolver: topicResolver,
		AWSConfig:     awsCfg,
		OptFns:        optFns,
		Marshaler:     sns.DefaultMarshalerUnmarshaler{},
	}, logger)
	if err != nil {
		return transport.Sink{}, err
	}

	client := ClientFactory(awsCfg, optFns...)
	return transport.Sink{
		Publisher:    publisher,
		Capabilities: transport.AWSCapabilities,
		Probe: func(ctx context.Context) error {
			_, err := client.ListTopics(ctx, &amazonsns.ListTopicsInput{})
			return err
		},
	}, nil
}

func loadAWSConfig(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	region := cfg.GetAWSRegion()
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	accessKey, secretKey := cfg.GetAWSAccessKeyID(), cfg.GetAWSSecretAccessKey()
	if accessKey != "" && secretKey != "" {
		logger.Info("Using static AWS credentials from config", nil)
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentials(accessKey, secretKey)))
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS config", err, watermill.LogFields{"requested_region": region})
		return aws.Config{}, err
	}
	if region != "" {
		awsCfg.Region = region
	}
	return awsCfg, nil
}

func endpointOptions(cfg transport.Config) ([]func(*amazonsns.Options), error) {
	raw := cfg.GetAWSEndpoint()
	if raw == "" {
		return nil, nil
	}
	endpoint, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("aws: parse endpoint: %w", err)
	}
	base := endpoint.String()
	return []func(*amazonsns.Options){
		func(o *amazonsns.Options) {
			o.BaseEndpoint = aws.String(base)
		},
	}, nil
}

// resolveAccountAndRegion falls back to the LocalStack account when a
// custom endpoint is configured without a valid account id.
func resolveAccountAndRegion(cfg transport.Config, logger watermill.LoggerAdapter, fallbackRegion string) (string, string) {
	accountID := strings.Trim(cfg.GetAWSAccountID(), "\"' ")
	region := cfg.GetAWSRegion()
	if region == "" {
		region = fallbackRegion
	}

	localstack := cfg.GetAWSEndpoint() != ""
	if localstack && len(accountID) != awsAccountIDLength {
		logger.Info("Using LocalStack account id", watermill.LogFields{"configured": accountID})
		accountID = localstackAccountID
	}
	return accountID, region
}

func staticCredentials(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			Source:          "retailstream-config",
		}, nil
	})
}
