package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用程序配置
type Config struct {
	TelegramToken string  // 转发 Bot 的 API Token
	AdminIDs      []int64 // 管理员 Chat ID 列表（接收运行通知）
	MongoURI      string  // MongoDB 连接 URI
	MongoDBName   string  // MongoDB 数据库名称

	TelegramAPIID   int    // MTProto API ID（账号侧）
	TelegramAPIHash string // MTProto API Hash（账号侧）
	SessionDir      string // 账号 session 文件目录

	DestGroupID    int64 // 目标群 Chat ID（所有命中消息的转发目的地）
	WatchAllGroups bool  // 为 true 时不做群目录范围过滤（默认 false）

	CacheTTL          time.Duration // 关键词/群目录缓存刷新间隔
	DedupTTL          time.Duration // 去重条目存活时间
	QueueCapacity     int           // 出站队列容量
	DeliveryWorkers   int           // 投递 worker 数量
	MaxDeliveryTries  int           // 单条消息投递尝试上限（含限流重试）
	ResyncInterval    time.Duration // 账号群成员关系重新同步间隔
	DiscoveryInterval time.Duration // 新账号发现轮询间隔
	NotifySuppress    time.Duration // 同因通知抑制窗口
	ReconnectTries    int           // 账号重连尝试上限
	ReconnectDelay    time.Duration // 账号重连固定延迟
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoDBName == "" {
		mongoDBName = "forward_bot"
	}

	cfg := &Config{
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDBName:     mongoDBName,
		TelegramAPIHash: strings.TrimSpace(os.Getenv("TELEGRAM_API_HASH")),
	}

	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI is required")
	}

	apiID, err := requireInt("TELEGRAM_API_ID")
	if err != nil {
		return nil, err
	}
	cfg.TelegramAPIID = apiID
	if cfg.TelegramAPIHash == "" {
		return nil, fmt.Errorf("TELEGRAM_API_HASH is required")
	}

	destGroupID, err := requireInt64("DEST_GROUP_ID")
	if err != nil {
		return nil, err
	}
	cfg.DestGroupID = destGroupID

	// 解析 ADMIN_IDS（可选，逗号分隔）
	if adminIDsStr := os.Getenv("ADMIN_IDS"); adminIDsStr != "" {
		cfg.AdminIDs, err = parseIDList(adminIDsStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ADMIN_IDS: %w", err)
		}
	}

	if watchAll := strings.TrimSpace(os.Getenv("WATCH_ALL_GROUPS")); watchAll != "" {
		value, err := strconv.ParseBool(watchAll)
		if err != nil {
			return nil, fmt.Errorf("failed to parse WATCH_ALL_GROUPS: %w", err)
		}
		cfg.WatchAllGroups = value
	}

	cfg.SessionDir = os.Getenv("SESSION_DIR")
	if cfg.SessionDir == "" {
		cfg.SessionDir = "./sessions"
	}

	if cfg.CacheTTL, err = durationSeconds("CACHE_TTL_SECONDS", 300); err != nil {
		return nil, err
	}
	if cfg.DedupTTL, err = durationSeconds("DEDUP_TTL_SECONDS", 180); err != nil {
		return nil, err
	}
	if cfg.QueueCapacity, err = positiveInt("QUEUE_CAPACITY", 5000); err != nil {
		return nil, err
	}
	if cfg.DeliveryWorkers, err = positiveInt("DELIVERY_WORKERS", 6); err != nil {
		return nil, err
	}
	if cfg.MaxDeliveryTries, err = positiveInt("DELIVERY_MAX_ATTEMPTS", 8); err != nil {
		return nil, err
	}
	if cfg.ResyncInterval, err = durationSeconds("RESYNC_INTERVAL_SECONDS", 1800); err != nil {
		return nil, err
	}
	if cfg.DiscoveryInterval, err = durationSeconds("DISCOVERY_INTERVAL_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.NotifySuppress, err = durationSeconds("NOTIFY_SUPPRESS_SECONDS", 120); err != nil {
		return nil, err
	}
	if cfg.ReconnectTries, err = positiveInt("RECONNECT_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.ReconnectDelay, err = durationSeconds("RECONNECT_DELAY_SECONDS", 10); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseIDList 解析逗号分隔的 ID 字符串
// 支持格式: "123456789" 或 "123456789,987654321"
func parseIDList(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func requireInt(name string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return value, nil
}

func requireInt64(name string) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return value, nil
}

func positiveInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if value < 1 {
		return 0, fmt.Errorf("%s must be >= 1, got %d", name, value)
	}
	return value, nil
}

func durationSeconds(name string, fallback int) (time.Duration, error) {
	seconds, err := positiveInt(name, fallback)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}
