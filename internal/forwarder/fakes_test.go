package forwarder

import (
	"context"
	"sync"

	"forward_bot/internal/forwarder/models"
	"forward_bot/internal/sink"
)

// fakeKeywordRepo 内存关键词仓库
type fakeKeywordRepo struct {
	keywords []string
	err      error
}

func (f *fakeKeywordRepo) List(ctx context.Context) ([]*models.Keyword, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.Keyword, 0, len(f.keywords))
	for _, kw := range f.keywords {
		out = append(out, &models.Keyword{Keyword: kw})
	}
	return out, nil
}

func (f *fakeKeywordRepo) Upsert(ctx context.Context, keyword string) error { return nil }
func (f *fakeKeywordRepo) Delete(ctx context.Context, keyword string) error { return nil }
func (f *fakeKeywordRepo) EnsureIndexes(ctx context.Context) error          { return nil }

// fakeGroupRepo 内存群目录仓库
type fakeGroupRepo struct {
	groups []*models.WatchedGroup
	err    error
}

func (f *fakeGroupRepo) ListSources(ctx context.Context) ([]*models.WatchedGroup, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.groups, nil
}

func (f *fakeGroupRepo) Register(ctx context.Context, group *models.WatchedGroup) error { return nil }
func (f *fakeGroupRepo) GetByGroupID(ctx context.Context, groupID int64) (*models.WatchedGroup, error) {
	return nil, nil
}
func (f *fakeGroupRepo) EnsureIndexes(ctx context.Context) error { return nil }

// memoryRecordRepo 记录审计写入的内存仓库
type memoryRecordRepo struct {
	mu       sync.Mutex
	created  []*models.MatchRecord
	statuses map[string]string
}

func newMemoryRecordRepo() *memoryRecordRepo {
	return &memoryRecordRepo{statuses: make(map[string]string)}
}

func (m *memoryRecordRepo) Create(ctx context.Context, record *models.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, record)
	return nil
}

func (m *memoryRecordRepo) UpdateStatus(ctx context.Context, taskID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[taskID] = status
	return nil
}

func (m *memoryRecordRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (m *memoryRecordRepo) statusOf(taskID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[taskID]
}

// scriptedSink 按脚本返回错误的投递出口
// responses 耗尽后一律成功；记录每次收到的消息。
type scriptedSink struct {
	mu        sync.Mutex
	responses []error
	sent      []*sink.Message
}

func (s *scriptedSink) Send(ctx context.Context, msg *sink.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, msg)
	if len(s.responses) == 0 {
		return nil
	}
	err := s.responses[0]
	s.responses = s.responses[1:]
	return err
}

func (s *scriptedSink) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *scriptedSink) lastMessage() *sink.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}
