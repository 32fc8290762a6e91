package providers

import (
	"context"
	"os"

	"github.com/Shopify/sarama"
	"github.com/pelletier/go-toml"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/GouveiaZx/vendeuonline-sub004/pkg/audit"
)

// Audit trail config.
const (
	ConfKafkaAddrs       = "kafka.addrs"
	ConfKafkaTopic       = "kafka.topic"
	ConfSaramaConfigFile = "sarama.config_file"
)

func init() {
	viper.SetDefault(ConfKafkaAddrs, []string{})
	viper.SetDefault(ConfKafkaTopic, "audit-events")
	viper.SetDefault(ConfSaramaConfigFile, "")
}

// NewAuditPublisher builds the audit event sink. With Kafka brokers
// configured events go to the audit topic, otherwise they only hit
// the service log.
func NewAuditPublisher(lc fx.Lifecycle, log *zap.Logger) (audit.Publisher, error) {
	addrs := viper.GetStringSlice(ConfKafkaAddrs)
	if len(addrs) == 0 {
		log.Info("No Kafka brokers configured, audit events go to the log")
		return &audit.LogPublisher{Log: log.Named("audit")}, nil
	}
	config, err := newSaramaConfig(log)
	if err != nil {
		return nil, err
	}
	log.Info("Connecting to Kafka (sarama)",
		zap.Strings(ConfKafkaAddrs, addrs))
	client, err := sarama.NewClient(addrs, config)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing Kafka producer")
			if err := producer.Close(); err != nil {
				return err
			}
			return client.Close()
		},
	})
	return &audit.KafkaPublisher{
		Producer: producer,
		Topic:    viper.GetString(ConfKafkaTopic),
		Log:      log.Named("audit"),
	}, nil
}

func newSaramaConfig(log *zap.Logger) (*sarama.Config, error) {
	config := sarama.NewConfig()
	// Since sarama has so many options, it's easiest to read in a file.
	configFilePath := viper.GetString(ConfSaramaConfigFile)
	if configFilePath != "" {
		log.Info("Reading sarama config",
			zap.String(ConfSaramaConfigFile, configFilePath))
		f, err := os.Open(configFilePath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		dec := toml.NewDecoder(f)
		if err := dec.Decode(config); err != nil {
			return nil, err
		}
	}
	config.Producer.Return.Successes = true
	return config, nil
}
