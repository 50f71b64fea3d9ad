package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	natspkg "github.com/brojonat/splflow/service/nats"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StepStream relays step events from JetStream to Server-Sent Events clients.
type StepStream struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewStepStream connects to NATS for streaming step events.
func NewStepStream(natsURL string, logger *slog.Logger) (*StepStream, error) {
	nc, err := natspkg.Connect(natsURL, "splflow-sse")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	logger.Info("step stream initialized", "nats_url", natsURL)

	return &StepStream{
		nc:     nc,
		js:     js,
		logger: logger,
	}, nil
}

// Close closes the NATS connection.
func (s *StepStream) Close() error {
	if s.nc != nil {
		s.nc.Close()
		s.logger.Info("step stream closed")
	}
	return nil
}

// handleStreamSteps streams step events for one run, or for every run when
// the id path parameter is absent.
func handleStreamSteps(stream *StepStream, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID := r.PathValue("id")
		if runID != "" {
			if err := validateRunID(runID); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		subject := natspkg.RunFilterSubject(runID)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flush(w)

		logger.DebugContext(r.Context(), "SSE client connected",
			"subject", subject,
			"remote_addr", r.RemoteAddr,
		)

		// A run's earlier steps may already be in the stream, so a single run
		// is replayed from the start; the all-runs stream only sends new events.
		deliver := jetstream.DeliverAllPolicy
		if runID == "" {
			deliver = jetstream.DeliverNewPolicy
		}

		// Ephemeral consumer, deleted by the server once inactive
		cons, err := stream.js.CreateOrUpdateConsumer(r.Context(), natspkg.StreamName, jetstream.ConsumerConfig{
			FilterSubject: subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			DeliverPolicy: deliver,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to create consumer",
				"subject", subject,
				"error", err,
			)
			fmt.Fprintf(w, "event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n")
			return
		}

		msgChan := make(chan jetstream.Msg, 10)
		cc, err := cons.Consume(func(msg jetstream.Msg) {
			select {
			case msgChan <- msg:
			case <-r.Context().Done():
			}
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to start consuming messages", "error", err)
			fmt.Fprintf(w, "event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n")
			return
		}
		defer cc.Stop()

		connected, _ := json.Marshal(map[string]string{"run_id": runID, "subject": subject})
		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", connected)
		flush(w)

		keepalive := time.NewTicker(10 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flush(w)

			case msg := <-msgChan:
				var event natspkg.StepEvent
				if err := json.Unmarshal(msg.Data(), &event); err != nil {
					logger.WarnContext(r.Context(), "failed to unmarshal event", "error", err)
					msg.Ack()
					continue
				}

				fmt.Fprintf(w, "event: step\ndata: %s\n\n", msg.Data())
				flush(w)
				msg.Ack()

				logger.DebugContext(r.Context(), "sent step event",
					"run_id", event.RunID,
					"step", event.Step,
				)

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"subject", subject,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
