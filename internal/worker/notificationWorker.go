// The notification worker follows a transfer through its lifecycle: it
// nudges the recipient when verification is awaited, nudges the sender when
// approval is awaited, and sends debit/credit alerts once a completion has
// committed. It reads events that describe already-settled state.
package worker

import (
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/seyialao/payguard/internal/handler"
	"github.com/seyialao/payguard/internal/stream"
)

func (wk *Worker) NotificationWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: transferNotificationGroupID,
		Topics: []string{
			stream.TransferRequestedTopic,
			stream.TransferVerifiedTopic,
			stream.TransferCompletedTopic,
			stream.TransferCancelledTopic,
		},
	})
	if err != nil {
		wk.Logger.Error("error creating notification consumer", "error", err)
		return
	}
	defer consumer.Close()

	for {
		select {
		case <-wk.Ctx.Done():
			wk.Logger.Info("NotificationWorker received cancellation signal, shutting down...")
			return
		default:
			event := consumer.Poll(100)
			switch e := event.(type) {
			case *kafka.Message:
				var transfer handler.TransferResponseData
				if err := json.Unmarshal(e.Value, &transfer); err != nil {
					wk.Logger.Error("error decoding transfer event", "error", err)
					continue
				}

				wk.dispatchTransferNotification(*e.TopicPartition.Topic, &transfer)
			case kafka.Error:
				wk.Logger.Error("kafka error", "error", e)
			case *kafka.AssignedPartitions:
				consumer.Assign(e.Partitions)
			case *kafka.RevokedPartitions:
				consumer.Unassign()
			}
		}
	}
}

func (wk *Worker) dispatchTransferNotification(topic string, transfer *handler.TransferResponseData) {
	switch topic {
	case stream.TransferRequestedTopic:
		wk.sendVerificationNeededAlert(transfer)
	case stream.TransferVerifiedTopic:
		wk.sendApprovalNeededAlert(transfer)
	case stream.TransferCompletedTopic:
		wk.sendCompletionAlerts(transfer)
	case stream.TransferCancelledTopic:
		wk.Logger.Info("transfer cancelled", "reference", transfer.Reference)
	}
}

// sendVerificationNeededAlert tells the recipient a transfer is waiting on
// their selfie and location evidence.
func (wk *Worker) sendVerificationNeededAlert(transfer *handler.TransferResponseData) {
	recipient, found, err := wk.UserRepo.GetOne(transfer.RecipientID)
	if err != nil || !found {
		wk.Logger.Error("error finding recipient for verification alert", "error", err)
		return
	}

	sender, found, err := wk.UserRepo.GetOne(transfer.SenderID)
	if err != nil || !found {
		wk.Logger.Error("error finding sender for verification alert", "error", err)
		return
	}

	wk.Helper.BackgroundTask(nil, func() error {
		emailData := wk.Helper.NewEmailData()
		emailData["Name"] = recipient.FullName()
		emailData["SenderName"] = sender.FullName()
		emailData["Amount"] = transfer.Amount
		emailData["Reference"] = transfer.Reference

		return wk.Mailer.Send(recipient.Email, emailData, "verification-needed.tmpl")
	})
}

// sendApprovalNeededAlert tells the sender the recipient has verified and
// the transfer now waits on their approval.
func (wk *Worker) sendApprovalNeededAlert(transfer *handler.TransferResponseData) {
	sender, found, err := wk.UserRepo.GetOne(transfer.SenderID)
	if err != nil || !found {
		wk.Logger.Error("error finding sender for approval alert", "error", err)
		return
	}

	recipient, found, err := wk.UserRepo.GetOne(transfer.RecipientID)
	if err != nil || !found {
		wk.Logger.Error("error finding recipient for approval alert", "error", err)
		return
	}

	wk.Helper.BackgroundTask(nil, func() error {
		emailData := wk.Helper.NewEmailData()
		emailData["Name"] = sender.FullName()
		emailData["RecipientName"] = recipient.FullName()
		emailData["Amount"] = transfer.Amount
		emailData["Reference"] = transfer.Reference

		return wk.Mailer.Send(sender.Email, emailData, "approval-needed.tmpl")
	})
}

// sendCompletionAlerts sends the debit alert to the sender and the credit
// alert to the recipient. Balances shown are read after the commit.
func (wk *Worker) sendCompletionAlerts(transfer *handler.TransferResponseData) {
	sender, found, err := wk.UserRepo.GetOne(transfer.SenderID)
	if err != nil || !found {
		wk.Logger.Error("error finding sender for debit alert", "error", err)
		return
	}

	recipient, found, err := wk.UserRepo.GetOne(transfer.RecipientID)
	if err != nil || !found {
		wk.Logger.Error("error finding recipient for credit alert", "error", err)
		return
	}

	wk.Helper.BackgroundTask(nil, func() error {
		emailData := wk.Helper.NewEmailData()
		emailData["Name"] = sender.FullName()
		emailData["RecipientName"] = recipient.FullName()
		emailData["Amount"] = transfer.Amount
		emailData["Reference"] = transfer.Reference
		emailData["NewBalance"] = sender.WalletBalance

		return wk.Mailer.Send(sender.Email, emailData, "debit-alert.tmpl")
	})

	wk.Helper.BackgroundTask(nil, func() error {
		emailData := wk.Helper.NewEmailData()
		emailData["Name"] = recipient.FullName()
		emailData["SenderName"] = sender.FullName()
		emailData["Amount"] = transfer.Amount
		emailData["Reference"] = transfer.Reference
		emailData["NewBalance"] = recipient.WalletBalance

		return wk.Mailer.Send(recipient.Email, emailData, "credit-alert.tmpl")
	})
}
