// Worker consumes workspace events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, MIRROR_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/YudyTkm/itlingo-itoi-sub001/internal/config"
	"github.com/YudyTkm/itlingo-itoi-sub001/internal/telemetry/loki"
)

const pushTimeout = 10 * time.Second

// messageReader is the subset of *kafka.Reader the forward loop needs.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		log.Fatal("worker: LOKI_URL is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.MirrorKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: pushTimeout}
	log.Printf("worker: consuming from %s (group %s), pushing to %s", cfg.MirrorKafkaTopic, cfg.KafkaGroupID, cfg.LokiURL)
	forward(ctx, reader, func(ctx context.Context, raw []byte) error {
		return loki.PushEventJSON(ctx, client, cfg.LokiURL, raw)
	})
	log.Println("worker: stopped")
}

// forward reads messages until ctx is done and hands each value to push.
// Read and push failures are logged; the loop keeps going.
func forward(ctx context.Context, r messageReader, push func(context.Context, []byte) error) {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}
		pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
		if err := push(pushCtx, msg.Value); err != nil {
			log.Printf("worker: loki push failed (partition %d offset %d): %v", msg.Partition, msg.Offset, err)
		}
		cancel()
	}
}
