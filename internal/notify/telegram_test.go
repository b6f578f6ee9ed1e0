package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rungroj/internal/config"
	"rungroj/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func sampleChange(changeType models.ChangeType) models.ReservationChange {
	total := int64(12500)
	return models.ReservationChange{
		Type: changeType,
		New: models.ReservationRecord{
			ID:             "r-42",
			VehicleID:      "fb-1",
			PickupDate:     time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC),
			DropoffDate:    time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
			PickupLocation: "สาขาหลัก",
			ServiceType:    models.ServiceWithDriver,
			Status:         models.StatusPending,
			TotalPrice:     &total,
			Notes:          "ต้องการคาร์ซีท",
			Vehicle:        &models.Vehicle{Name: "Toyota Yaris"},
		},
	}
}

func TestFormatChange(t *testing.T) {
	text := FormatChange(sampleChange(models.ChangeInsert))

	assert.True(t, strings.HasPrefix(text, "🆕 การจองใหม่"))
	assert.Contains(t, text, "รหัส: r-42")
	assert.Contains(t, text, "รถ: Toyota Yaris")
	assert.Contains(t, text, "15 - 20 ก.พ. 2569")
	assert.Contains(t, text, "บริการ: พร้อมคนขับ")
	assert.Contains(t, text, "ยอดรวม: ฿12,500")
	assert.Contains(t, text, "สถานะ: ⏳ รอยืนยัน")
	assert.Contains(t, text, "หมายเหตุ: ต้องการคาร์ซีท")

	update := sampleChange(models.ChangeUpdate)
	update.New.Vehicle = nil
	update.New.TotalPrice = nil
	update.New.Status = models.StatusConfirmed
	text = FormatChange(update)
	assert.True(t, strings.HasPrefix(text, "🔄"))
	assert.Contains(t, text, "รถ: fb-1")
	assert.NotContains(t, text, "ยอดรวม")
	assert.Contains(t, text, "✅ ยืนยันแล้ว")
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "❌ ยกเลิก", StatusLabel(models.StatusCancelled))
	assert.Equal(t, "weird", StatusLabel(models.ReservationStatus("weird")))
}

func TestNotifyReservation(t *testing.T) {
	t.Run("SendsToEveryChat", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && strings.Contains(msg.Text, "r-42")
		})).Return(tgbotapi.Message{}, nil).Twice()

		n := NewTelegramNotifier(sender, []int64{1, 2}, nil)
		require.NoError(t, n.NotifyReservation(context.Background(), sampleChange(models.ChangeInsert)))
		sender.AssertExpectations(t)
	})

	t.Run("ReturnsFirstErrorButTriesAll", func(t *testing.T) {
		sender := new(mockSender)
		sendErr := errors.New("blocked by user")
		sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, sendErr).Once()
		sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil).Once()

		n := NewTelegramNotifier(sender, []int64{1, 2}, nil)
		err := n.NotifyReservation(context.Background(), sampleChange(models.ChangeUpdate))
		assert.ErrorIs(t, err, sendErr)
		sender.AssertNumberOfCalls(t, "Send", 2)
	})

	t.Run("NoChatsIsNoop", func(t *testing.T) {
		sender := new(mockSender)
		n := NewTelegramNotifier(sender, nil, nil)
		assert.NoError(t, n.NotifyReservation(context.Background(), sampleChange(models.ChangeInsert)))
		sender.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		sender := new(mockSender)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		n := NewTelegramNotifier(sender, []int64{1}, nil)
		assert.ErrorIs(t, n.NotifyReservation(ctx, sampleChange(models.ChangeInsert)), context.Canceled)
	})
}

func TestNewBotSender_EmptyToken(t *testing.T) {
	_, err := NewBotSender(configWithToken(""))
	assert.Error(t, err)
}

func configWithToken(token string) config.TelegramConfig {
	return config.TelegramConfig{BotToken: token}
}
