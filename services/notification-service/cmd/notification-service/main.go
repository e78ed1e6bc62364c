package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/clinicbook/clinicbook/libs/config"
	"github.com/clinicbook/clinicbook/libs/db"
	"github.com/clinicbook/clinicbook/libs/httpx"
	"github.com/clinicbook/clinicbook/libs/kafkax"
	otelx "github.com/clinicbook/clinicbook/libs/otel"
	"github.com/clinicbook/clinicbook/libs/runtime"
	"github.com/clinicbook/clinicbook/services/notification-service/internal/consumer"
	"github.com/clinicbook/clinicbook/services/notification-service/internal/email"
	"github.com/clinicbook/clinicbook/services/notification-service/internal/inbox"
	"github.com/clinicbook/clinicbook/services/notification-service/internal/notify"
	"github.com/clinicbook/clinicbook/services/notification-service/internal/outbox"
	"github.com/clinicbook/clinicbook/services/notification-service/internal/sms"
	"github.com/clinicbook/clinicbook/services/notification-service/internal/storage"
)

const defaultTopics = "clinic.appointment.requested.v1,clinic.appointment.confirmed.v1,clinic.appointment.completed.v1,clinic.appointment.cancelled.v1"

type processor struct {
	logger        *slog.Logger
	notifications *storage.Repository
	outbox        *outbox.Repository
	emailSender   email.Sender
	smsSender     sms.Sender
	baseURL       string
	loc           *time.Location
}

func (p *processor) handle(ctx context.Context, msg kafka.Message) error {
	var evt notify.AppointmentEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		p.logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if err := evt.Validate(); err != nil {
		p.logger.Error("unusable event payload", "err", err, "topic", msg.Topic)
		return nil
	}

	rendered := notify.Render(evt, p.baseURL, p.loc)

	if evt.PatientEmail != "" {
		p.deliver(ctx, evt, "email", evt.PatientEmail, rendered.Subject, rendered.Body, func() error {
			return p.emailSender.Send(evt.PatientEmail, rendered.Subject, rendered.Body)
		})
	}
	if evt.PatientPhone != "" {
		p.deliver(ctx, evt, "sms", evt.PatientPhone, "", rendered.SMS, func() error {
			return p.smsSender.Send(ctx, evt.PatientPhone, rendered.SMS)
		})
	}
	if evt.PatientEmail == "" && evt.PatientPhone == "" {
		p.logger.Info("no reachable contact for appointment", "appointment_id", evt.AppointmentID)
	}
	return nil
}

// deliver sends on one channel and records the outcome. A send failure
// is recorded and receipted but never bounces the event back to Kafka;
// the inbox row already marks it processed.
func (p *processor) deliver(ctx context.Context, evt notify.AppointmentEvent, channel, recipient, subject, body string, send func() error) {
	status := "sent"
	errorReason := ""
	if err := send(); err != nil {
		status = "failed"
		errorReason = err.Error()
		p.logger.Error("delivery failed", "channel", channel, "appointment_id", evt.AppointmentID, "err", err)
	}

	if err := p.notifications.Insert(ctx, storage.Notification{
		AppointmentID: evt.AppointmentID,
		EventType:     kafkaEventType(evt.Status),
		Channel:       channel,
		Recipient:     recipient,
		Subject:       subject,
		Body:          body,
		Status:        status,
		ErrorReason:   errorReason,
	}); err != nil {
		p.logger.Error("failed to persist notification", "err", err)
	}

	receipt := map[string]any{
		"appointment_id": evt.AppointmentID,
		"channel":        channel,
		"status":         evt.Status,
		"at":             time.Now().UTC().Format(time.RFC3339),
	}
	topic := outbox.TopicNotificationSent
	if status == "failed" {
		topic = outbox.TopicNotificationFailed
		receipt["error_reason"] = errorReason
	}
	payload, err := json.Marshal(receipt)
	if err != nil {
		p.logger.Error("failed to build receipt", "err", err)
		return
	}
	if err := p.outbox.Record(ctx, outbox.Event{
		AggregateType: "notification",
		AggregateID:   evt.AppointmentID,
		EventType:     topic,
		Payload:       payload,
	}); err != nil {
		p.logger.Error("failed to enqueue receipt", "err", err)
	}
}

func kafkaEventType(status string) string {
	return "clinic.appointment." + statusWord(status) + ".v1"
}

func statusWord(status string) string {
	switch status {
	case "confirmed", "completed", "cancelled":
		return status
	default:
		return "requested"
	}
}

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	loc, err := time.LoadLocation(config.String("CLINIC_TIMEZONE", "Asia/Karachi"))
	if err != nil {
		logger.Error("invalid CLINIC_TIMEZONE", "err", err)
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	go outbox.NewPublisher(pool, outboxRepo, logger, config.String("KAFKA_BROKERS", "")).Run(ctx)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@clinicbook.local")

	var smsSender sms.Sender
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "webhook":
		smsSender = sms.NewWebhookSender(config.String("SMS_WEBHOOK_URL", ""), config.String("SMS_WEBHOOK_TOKEN", ""))
	default:
		smsSender = sms.NewNoopSender()
	}

	proc := &processor{
		logger:        logger,
		notifications: storage.NewRepository(pool),
		outbox:        outboxRepo,
		emailSender:   email.NewSMTPSender(smtpHost, smtpPort, smtpFrom),
		smsSender:     smsSender,
		baseURL:       config.String("PUBLIC_BASE_URL", "http://localhost:3000"),
		loc:           loc,
	}

	eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "notification-service"),
		Topics:  splitList(config.String("KAFKA_CONSUME_TOPICS", defaultTopics)),
	}, proc.handle)
	go eventConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
