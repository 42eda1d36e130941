package repository

import (
	"context"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	pkgkafka "TradePulse/pkg/kafka"
)

// KafkaReporter publishes worker outcomes and run summaries to Kafka for
// downstream display. It never computes anything; slow consumers only slow
// the broker, not the workers.
type KafkaReporter struct {
	producer     *pkgkafka.Producer
	outcomeTopic string
	runTopic     string
}

func NewKafkaReporter(producer *pkgkafka.Producer, outcomeTopic, runTopic string) drepo.Reporter {
	return &KafkaReporter{
		producer:     producer,
		outcomeTopic: outcomeTopic,
		runTopic:     runTopic,
	}
}

func (r *KafkaReporter) ReportOutcome(ctx context.Context, o models.Outcome) error {
	return r.producer.Publish(ctx, r.outcomeTopic, []byte(o.Symbol), o)
}

func (r *KafkaReporter) ReportRun(ctx context.Context, s models.RunSummary) error {
	return r.producer.Publish(ctx, r.runTopic, []byte(s.RunID), s)
}

func (r *KafkaReporter) Close() error {
	if r.producer != nil {
		return r.producer.Close()
	}
	return nil
}
