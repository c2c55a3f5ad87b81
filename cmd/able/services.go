package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/pavelanni/able/internal/events"
	"github.com/pavelanni/able/internal/llm"
	"github.com/pavelanni/able/internal/session"
	"github.com/pavelanni/able/internal/speech"
	"github.com/pavelanni/able/internal/translate"
)

// services holds the optional backends. Unconfigured ones stay nil and the
// session falls back to its offline behavior.
type services struct {
	llm        *llm.Client
	tts        *speech.HTTPSynthesizer
	translator *translate.Service
	publisher  *events.WatermillPublisher
	redis      *redis.Client
}

func newServices(ctx context.Context, v *viper.Viper) (*services, error) {
	s := &services{}
	logger := slog.Default()

	if url := v.GetString("llm-url"); url != "" {
		s.llm = llm.New(url, v.GetString("llm-key"), v.GetString("llm-model"), v.GetString("llm-vision-model"))
		if err := s.llm.Ping(ctx); err != nil {
			slog.Warn("LLM endpoint unreachable, hints will use fallbacks", "url", url, "error", err)
		} else {
			slog.Info("LLM endpoint OK", "url", url, "model", v.GetString("llm-model"))
		}
	}

	if url := v.GetString("tts-url"); url != "" {
		s.tts = speech.NewHTTPSynthesizer(url, v.GetString("tts-key"))
	}

	var cache translate.Cache
	if url := v.GetString("redis-url"); url != "" {
		client, err := translate.NewRedisClient(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("connect translation cache: %w", err)
		}
		s.redis = client
		cache = translate.NewRedisCache(client, v.GetDuration("translation-ttl"))
	}
	var client translate.Translator
	if url := v.GetString("translate-url"); url != "" {
		client = translate.NewClient(url)
	}
	s.translator = translate.NewService(client, cache, logger)

	pub, ch, err := events.NewPublisher(events.Config{
		KafkaBrokers: v.GetStringSlice("kafka-brokers"),
		Topic:        v.GetString("kafka-topic"),
		Logger:       logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.publisher = pub
	if ch != nil {
		topic := v.GetString("kafka-topic")
		if topic == "" {
			topic = events.DefaultTopic
		}
		msgs, err := ch.Subscribe(ctx, topic)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("subscribe to events: %w", err)
		}
		go logEvents(msgs)
	}

	return s, nil
}

// logEvents records in-process events when no broker is configured.
func logEvents(msgs <-chan *message.Message) {
	for msg := range msgs {
		slog.Info("event",
			"id", msg.UUID,
			"type", msg.Metadata.Get("event_type"),
			"payload", string(msg.Payload),
		)
		msg.Ack()
	}
}

func (s *services) hinter() session.Hinter {
	if s.llm == nil {
		return nil
	}
	return s.llm
}

func (s *services) captioner() session.Captioner {
	if s.llm == nil {
		return nil
	}
	return s.llm
}

func (s *services) synthesizer() speech.Synthesizer {
	if s.tts == nil {
		return nil
	}
	return s.tts
}

func (s *services) Close() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			slog.Warn("failed to close event publisher", "error", err)
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}
