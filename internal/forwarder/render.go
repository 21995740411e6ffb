package forwarder

import (
	"fmt"
	"html"
	"strings"

	"forward_bot/internal/sink"
	"forward_bot/internal/source"
)

// MessageLink 计算消息永久链接
// 公开群走 username 路径，私有群走数字 ID 路径（去掉 -100 前缀）。
func MessageLink(chatID int64, chatUsername string, messageID int64) string {
	if chatUsername != "" {
		return fmt.Sprintf("https://t.me/%s/%d", chatUsername, messageID)
	}

	bare := strings.TrimPrefix(fmt.Sprintf("%d", chatID), "-100")
	bare = strings.TrimPrefix(bare, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", bare, messageID)
}

// GroupLink 计算群入口链接（公开群），没有 username 时退化为消息链接
func GroupLink(chatUsername, messageLink string) string {
	if chatUsername != "" {
		return fmt.Sprintf("https://t.me/%s", chatUsername)
	}
	return messageLink
}

// RenderSenderRef 渲染发送者引用
// 优先级：公开用户名链接 → 按 ID 的用户引用 → 频道链接/消息链接（匿名署名）→ 占位符。
func RenderSenderRef(e *source.Event, messageLink string) string {
	switch e.SenderKind {
	case source.SenderUser:
		if e.SenderUsername != "" {
			return fmt.Sprintf(`<a href="https://t.me/%s">@%s</a>`, e.SenderUsername, html.EscapeString(e.SenderUsername))
		}
		name := e.SenderName
		if name == "" {
			name = fmt.Sprintf("id%d", e.SenderID)
		}
		return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, e.SenderID, html.EscapeString(name))

	case source.SenderAnonymousChannel:
		label := e.SenderName
		if label == "" {
			label = e.ChatTitle
		}
		if label == "" {
			label = "Kanal"
		}
		if e.ChatUsername != "" {
			return fmt.Sprintf(`<a href="https://t.me/%s">%s</a>`, e.ChatUsername, html.EscapeString(label))
		}
		return fmt.Sprintf(`<a href="%s">%s</a>`, messageLink, html.EscapeString(label))

	default:
		return "Foydalanuvchi"
	}
}

// RenderText 渲染转发正文
func RenderText(c *ForwardCandidate) string {
	groupName := c.GroupName
	if groupName == "" {
		groupName = "Guruh"
	}

	return fmt.Sprintf(
		"🔔 Guruhdan topildi!\n📍 %s\n🔑 Kalit so'z: %s\n\n%s\n\n👤 %s",
		html.EscapeString(groupName),
		html.EscapeString(c.Keyword),
		html.EscapeString(c.Body),
		c.SenderRef,
	)
}

// BuildJob 把候选渲染成投递任务
// 固定两个按钮（群入口、消息入口），额外链接最多再加 3 个按钮。
func BuildJob(c *ForwardCandidate, taskID string, destGroupID int64) *ForwardJob {
	rows := [][]sink.Button{
		{{Label: "👥 Guruhga o'tish", URL: c.GroupLink}},
		{{Label: "🔗 Xabarga o'tish", URL: c.MessageLink}},
	}

	for i, link := range c.ExtraLinks {
		if i >= maxExtraLinks {
			break
		}
		rows = append(rows, []sink.Button{{
			Label: fmt.Sprintf("🌐 Havola %d", i+1),
			URL:   link,
		}})
	}

	return &ForwardJob{
		Key:    c.Key(),
		TaskID: taskID,
		Message: &sink.Message{
			Destination:    destGroupID,
			Text:           RenderText(c),
			HTML:           true,
			DisablePreview: true,
			Buttons:        rows,
		},
	}
}
