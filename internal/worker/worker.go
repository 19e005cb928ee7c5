// Package worker hosts the Kafka consumers. Every consumer here is
// notification-only: balances and statuses are settled inside the request
// path before an event is ever produced, so a worker crash can delay an
// email but never lose money.
package worker

import (
	"context"
	"log/slog"

	"github.com/seyialao/payguard/internal/helper"
	"github.com/seyialao/payguard/internal/repository"
	"github.com/seyialao/payguard/internal/smtp"
	"github.com/seyialao/payguard/internal/stream"
)

const (
	// transferNotificationGroupID groups the consumers that turn transfer
	// lifecycle events into user-facing notifications.
	transferNotificationGroupID = "transfer-notification-group"
)

type Worker struct {
	KafkaStream *stream.KafkaStream
	UserRepo    repository.ProfileReader
	Mailer      smtp.MailerInterface
	Helper      *helper.HelperRepository
	Logger      *slog.Logger
	Ctx         context.Context
}

// Workers typically need the event stream, profile lookups and the mailer;
// anything consumer-specific is passed as an argument to the worker.
func New(wk *Worker) *Worker {
	return &Worker{
		KafkaStream: wk.KafkaStream,
		UserRepo:    wk.UserRepo,
		Mailer:      wk.Mailer,
		Helper:      wk.Helper,
		Logger:      wk.Logger,
		Ctx:         wk.Ctx,
	}
}
