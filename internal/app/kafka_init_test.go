package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitKafkaProducer_NoBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer(nil, logger)
	if err != nil {
		t.Errorf("expected no error without brokers, got %v", err)
	}
	if producer != nil {
		t.Error("expected nil producer without brokers")
	}

	cfg := DefaultConfig()
	cfg.KafkaBrokers = " , "
	producer, err = initKafkaProducer(cfg.Brokers(), logger)
	if err != nil || producer != nil {
		t.Errorf("blank broker list should disable kafka, got %v %v", producer, err)
	}
}

func TestInitKafkaProducer_UnreachableBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	cfg := DefaultConfig()
	cfg.KafkaBrokers = "invalid-broker:9999, other-broker:9999"
	producer, err := initKafkaProducer(cfg.Brokers(), logger)

	if err == nil {
		t.Error("expected error for unreachable brokers")
	}
	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestCloseKafka_NilProducer(_ *testing.T) {
	logger := log.WithField("test", "kafka")

	// Не должно паниковать
	closeKafka(nil, logger)
}
