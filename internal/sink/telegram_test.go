package sink

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

type fakeSender struct {
	params *bot.SendMessageParams
	err    error
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*botModels.Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &botModels.Message{ID: 1}, nil
}

func TestSendBuildsParams(t *testing.T) {
	sender := &fakeSender{}
	s := NewTelegramSink(sender)

	err := s.Send(context.Background(), &Message{
		Destination:    -1003784903860,
		Text:           "matched",
		HTML:           true,
		DisablePreview: true,
		Buttons: [][]Button{
			{{Label: "group", URL: "https://t.me/somegroup"}},
			{{Label: "message", URL: "https://t.me/somegroup/42"}},
		},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if sender.params.ParseMode != botModels.ParseModeHTML {
		t.Fatalf("expected HTML parse mode, got %q", sender.params.ParseMode)
	}
	if sender.params.LinkPreviewOptions == nil || sender.params.LinkPreviewOptions.IsDisabled == nil || !*sender.params.LinkPreviewOptions.IsDisabled {
		t.Fatalf("expected link preview disabled")
	}

	markup, ok := sender.params.ReplyMarkup.(*botModels.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("expected inline keyboard markup, got %T", sender.params.ReplyMarkup)
	}
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("unexpected keyboard rows: %d", len(markup.InlineKeyboard))
	}
	if markup.InlineKeyboard[1][0].URL != "https://t.me/somegroup/42" {
		t.Fatalf("unexpected message button url: %q", markup.InlineKeyboard[1][0].URL)
	}
}

func TestSendErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantWait  time.Duration
		wantLimit bool
	}{
		{
			name: "too many requests carries hint",
			err: &bot.TooManyRequestsError{
				Message:    "too many requests",
				RetryAfter: 5,
			},
			wantWait:  5 * time.Second,
			wantLimit: true,
		},
		{
			name:      "forbidden is terminal",
			err:       fmt.Errorf("%w, bot was kicked", bot.ErrorForbidden),
			wantLimit: false,
		},
		{
			name:      "generic error is terminal",
			err:       errors.New("boom"),
			wantLimit: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTelegramSink(&fakeSender{err: tt.err})

			err := s.Send(context.Background(), &Message{Destination: 1, Text: "x"})
			if err == nil {
				t.Fatalf("expected error")
			}

			wait, limited := AsRateLimit(err)
			if limited != tt.wantLimit {
				t.Fatalf("rate limit classification: got %v, want %v", limited, tt.wantLimit)
			}
			if limited && wait != tt.wantWait {
				t.Fatalf("unexpected wait hint: got %v, want %v", wait, tt.wantWait)
			}
		})
	}
}
