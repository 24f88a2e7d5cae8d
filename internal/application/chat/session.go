package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"lecture-rag-api/internal/domain/entity"
	apperrors "lecture-rag-api/pkg/errors"
)

// Session 单个对话会话,历史只追加,同一时刻至多一轮在途
type Session struct {
	ID        string
	CreatedAt time.Time

	mu    sync.Mutex
	busy  bool
	turns []*entity.ChatTurn
}

// BeginTurn 占用会话的写入权,返回释放函数
// 已有在途轮次时返回 ErrSessionBusy,不做任何历史改动
func (s *Session) BeginTurn() (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, apperrors.ErrSessionBusy
	}
	s.busy = true
	return func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}, nil
}

// AppendTurn 追加一条完成的轮次,历史永不改写或删除
func (s *Session) AppendTurn(t *entity.ChatTurn) {
	s.mu.Lock()
	s.turns = append(s.turns, t)
	s.mu.Unlock()
}

// Turns 返回历史快照,按追加顺序
func (s *Session) Turns() []*entity.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// SessionManager 进程内会话表,会话彼此独立,可并发进行各自的轮次
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager 创建会话管理器
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Create 新建会话
func (m *SessionManager) Create() *Session {
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get 查找会话
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}
