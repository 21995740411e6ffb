package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// messageSender 发送消息所需的最小 Bot API 接口
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*botModels.Message, error)
}

// TelegramSink 基于 Bot API 的投递出口
type TelegramSink struct {
	api messageSender
}

// NewTelegramSink 创建 Bot API 投递出口
func NewTelegramSink(api messageSender) *TelegramSink {
	return &TelegramSink{api: api}
}

// NewBot 创建底层 Bot API 客户端
func NewBot(token string) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}

	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return b, nil
}

// Send 投递一条消息
func (s *TelegramSink) Send(ctx context.Context, msg *Message) error {
	params := &bot.SendMessageParams{
		ChatID: msg.Destination,
		Text:   msg.Text,
	}

	if msg.HTML {
		params.ParseMode = botModels.ParseModeHTML
	}
	if msg.DisablePreview {
		params.LinkPreviewOptions = &botModels.LinkPreviewOptions{
			IsDisabled: bot.True(),
		}
	}
	if markup := buildMarkup(msg.Buttons); markup != nil {
		params.ReplyMarkup = markup
	}

	if _, err := s.api.SendMessage(ctx, params); err != nil {
		return classifySendError(err)
	}
	return nil
}

// buildMarkup 把按钮行转换为内联键盘
func buildMarkup(rows [][]Button) *botModels.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}

	keyboard := make([][]botModels.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]botModels.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			line = append(line, botModels.InlineKeyboardButton{
				Text: button.Label,
				URL:  button.URL,
			})
		}
		keyboard = append(keyboard, line)
	}

	if len(keyboard) == 0 {
		return nil
	}
	return &botModels.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}

// classifySendError 区分限流错误与终态错误
func classifySendError(err error) error {
	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return &RateLimitError{
			RetryAfter: time.Duration(tooMany.RetryAfter) * time.Second,
		}
	}
	return err
}
