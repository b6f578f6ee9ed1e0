// Package notify tells the rental office about new reservations and status
// changes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rungroj/internal/config"
	"rungroj/internal/dates"
	"rungroj/internal/domain"
	"rungroj/internal/models"
	"rungroj/internal/payment"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of the bot API the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramNotifier struct {
	sender  Sender
	chatIDs []int64
	logger  *zerolog.Logger
}

var _ domain.Notifier = (*TelegramNotifier)(nil)

func NewTelegramNotifier(sender Sender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "telegram_notifier").Logger()
	return &TelegramNotifier{sender: sender, chatIDs: chatIDs, logger: &l}
}

// NewBotSender connects to the Bot API with cfg.BotToken.
func NewBotSender(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

// NotifyReservation sends one message per admin chat. Every chat is tried;
// the first failure is returned.
func (n *TelegramNotifier) NotifyReservation(ctx context.Context, change models.ReservationChange) error {
	if n.sender == nil || len(n.chatIDs) == 0 {
		return nil
	}
	text := FormatChange(change)

	var firstErr error
	for _, chatID := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := n.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Str("reservation_id", change.New.ID).Msg("Telegram send failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

var statusLabels = map[models.ReservationStatus]string{
	models.StatusPending:   "⏳ รอยืนยัน",
	models.StatusConfirmed: "✅ ยืนยันแล้ว",
	models.StatusActive:    "🚗 กำลังเช่า",
	models.StatusCompleted: "🏁 เสร็จสิ้น",
	models.StatusCancelled: "❌ ยกเลิก",
}

// StatusLabel is the Thai label for a reservation status.
func StatusLabel(s models.ReservationStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// FormatChange renders the admin message for a change.
func FormatChange(change models.ReservationChange) string {
	rec := change.New
	var b strings.Builder

	if change.Type == models.ChangeInsert {
		b.WriteString("🆕 การจองใหม่\n")
	} else {
		b.WriteString("🔄 อัปเดตสถานะการจอง\n")
	}

	vehicle := rec.VehicleID
	if rec.Vehicle != nil && rec.Vehicle.Name != "" {
		vehicle = rec.Vehicle.Name
	}
	fmt.Fprintf(&b, "รหัส: %s\n", rec.ID)
	fmt.Fprintf(&b, "รถ: %s\n", vehicle)
	fmt.Fprintf(&b, "วันที่: %s\n", dates.FormatLocalizedRange(rec.PickupDate, rec.DropoffDate))
	if rec.PickupLocation != "" {
		fmt.Fprintf(&b, "สถานที่รับรถ: %s\n", rec.PickupLocation)
	}
	if rec.ServiceType == models.ServiceWithDriver {
		b.WriteString("บริการ: พร้อมคนขับ\n")
	}
	if total := rec.Price(); total > 0 {
		fmt.Fprintf(&b, "ยอดรวม: %s\n", payment.FormatBaht(total))
	}
	fmt.Fprintf(&b, "สถานะ: %s", StatusLabel(rec.Status))
	if rec.Notes != "" {
		fmt.Fprintf(&b, "\nหมายเหตุ: %s", rec.Notes)
	}
	return b.String()
}
