package forwarder

import (
	"strings"
	"testing"

	"forward_bot/internal/source"
)

func TestMessageLink(t *testing.T) {
	tests := []struct {
		name     string
		chatID   int64
		username string
		msgID    int64
		want     string
	}{
		{"公开群", -1001234567890, "mygroup", 55, "https://t.me/mygroup/55"},
		{"私有超级群去掉 -100", -1001234567890, "", 55, "https://t.me/c/1234567890/55"},
		{"普通群去掉负号", -4567, "", 9, "https://t.me/c/4567/9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MessageLink(tt.chatID, tt.username, tt.msgID); got != tt.want {
				t.Fatalf("MessageLink() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGroupLink(t *testing.T) {
	if got := GroupLink("mygroup", "https://t.me/c/1/2"); got != "https://t.me/mygroup" {
		t.Fatalf("GroupLink() = %q", got)
	}
	if got := GroupLink("", "https://t.me/c/1/2"); got != "https://t.me/c/1/2" {
		t.Fatalf("GroupLink() fallback = %q", got)
	}
}

func TestRenderSenderRef(t *testing.T) {
	link := "https://t.me/c/123/4"

	tests := []struct {
		name  string
		event *source.Event
		want  string
	}{
		{
			name:  "公开用户名",
			event: &source.Event{SenderKind: source.SenderUser, SenderUsername: "ali"},
			want:  `<a href="https://t.me/ali">@ali</a>`,
		},
		{
			name:  "无用户名走 tg://user 引用",
			event: &source.Event{SenderKind: source.SenderUser, SenderID: 77, SenderName: "Ali <dev>"},
			want:  `<a href="tg://user?id=77">Ali &lt;dev&gt;</a>`,
		},
		{
			name:  "匿名频道署名",
			event: &source.Event{SenderKind: source.SenderAnonymousChannel, ChatTitle: "Yangiliklar"},
			want:  `<a href="https://t.me/c/123/4">Yangiliklar</a>`,
		},
		{
			name:  "未知发送者占位",
			event: &source.Event{SenderKind: source.SenderUnknown},
			want:  "Foydalanuvchi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderSenderRef(tt.event, link); got != tt.want {
				t.Fatalf("RenderSenderRef() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildJob(t *testing.T) {
	candidate := &ForwardCandidate{
		AccountID:   "acc-1",
		ChatID:      -1001,
		MessageID:   10,
		GroupName:   "Toshkent taxi",
		Keyword:     "taxi",
		Body:        "Taxi kerak <hozir>",
		SenderRef:   `<a href="https://t.me/ali">@ali</a>`,
		MessageLink: "https://t.me/c/1001/10",
		GroupLink:   "https://t.me/c/1001/10",
		ExtraLinks:  []string{"https://example.com"},
	}

	job := BuildJob(candidate, "task-1", -200)

	if job.Key != (DedupKey{ChatID: -1001, MessageID: 10}) {
		t.Fatalf("unexpected dedup key %+v", job.Key)
	}
	if job.Message.Destination != -200 {
		t.Fatalf("destination = %d", job.Message.Destination)
	}
	if !job.Message.HTML || !job.Message.DisablePreview {
		t.Fatalf("message must be HTML with preview disabled")
	}
	if !strings.Contains(job.Message.Text, "🔑 Kalit so'z: taxi") {
		t.Fatalf("text missing keyword line: %q", job.Message.Text)
	}
	if !strings.Contains(job.Message.Text, "Taxi kerak &lt;hozir&gt;") {
		t.Fatalf("body must be HTML-escaped: %q", job.Message.Text)
	}
	if !strings.Contains(job.Message.Text, candidate.SenderRef) {
		t.Fatalf("sender ref must stay raw HTML: %q", job.Message.Text)
	}

	if len(job.Message.Buttons) != 3 {
		t.Fatalf("expected 3 button rows, got %d", len(job.Message.Buttons))
	}
	if job.Message.Buttons[2][0].Label != "🌐 Havola 1" {
		t.Fatalf("extra link button label = %q", job.Message.Buttons[2][0].Label)
	}
}
