package message

import (
	"context"
	"sort"
	"sync"
	"time"

	chatmodel "CMProject/module/chat/model"
	"CMProject/tools/errs"
	"CMProject/tools/ids"
)

// MemStore 是 Store 的纯内存实现，语义与 MongoStore 一致。
// 网关单测与本地联调使用；append 顺序即持久化顺序。
type MemStore struct {
	mu    sync.Mutex
	byID  map[string]*chatmodel.MessageModel
	order []*chatmodel.MessageModel

	Clock func() int64 // 可注入时钟（单测用）；nil => time.Now
}

func NewMemStore() *MemStore {
	return &MemStore{byID: make(map[string]*chatmodel.MessageModel)}
}

func (s *MemStore) now() int64 {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UnixMilli()
}

func (s *MemStore) Create(_ context.Context, sender, receiver, body, kind string) (*chatmodel.MessageModel, error) {
	if sender == "" || receiver == "" {
		return nil, errs.ErrArgs.WrapMsg("sender/receiver empty")
	}
	if kind == "" {
		kind = chatmodel.KindText
	}
	m := &chatmodel.MessageModel{
		MsgID:      ids.GenerateString(),
		SenderID:   sender,
		ReceiverID: receiver,
		Body:       body,
		Kind:       kind,
		SendTime:   s.now(),
	}

	s.mu.Lock()
	s.byID[m.MsgID] = m
	s.order = append(s.order, m)
	s.mu.Unlock()

	return m.Clone(), nil
}

func (s *MemStore) ListConversation(_ context.Context, viewer, peer string) ([]*chatmodel.MessageModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*chatmodel.MessageModel
	for _, m := range s.order {
		pair := (m.SenderID == viewer && m.ReceiverID == peer) ||
			(m.SenderID == peer && m.ReceiverID == viewer)
		if !pair || !m.VisibleTo(viewer) {
			continue
		}
		out = append(out, m.Clone())
	}
	// append 顺序已按写入排好；SliceStable 仅对齐 send_time 升序契约
	sort.SliceStable(out, func(i, j int) bool { return out[i].SendTime < out[j].SendTime })
	return out, nil
}

func (s *MemStore) MarkRead(_ context.Context, msgID, byReceiver string) (*chatmodel.MessageModel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[msgID]
	if !ok || m.ReceiverID != byReceiver || m.IsRead {
		return nil, false, nil
	}
	m.IsRead = true
	return m.Clone(), true, nil
}

func (s *MemStore) UpdateBody(_ context.Context, msgID, bySender, newBody string) (*chatmodel.MessageModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[msgID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("message not found", "msg_id", msgID)
	}
	if m.SenderID != bySender {
		return nil, errs.ErrUnauthorized.WrapMsg("caller is not the sender", "msg_id", msgID)
	}
	m.Body = newBody
	return m.Clone(), nil
}

func (s *MemStore) SoftDelete(_ context.Context, msgID, byParty string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[msgID]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("message not found", "msg_id", msgID)
	}
	switch byParty {
	case m.SenderID:
		m.SenderDeleted = true
	case m.ReceiverID:
		m.ReceiverDeleted = true
	default:
		return errs.ErrRecordNotFound.WrapMsg("caller is not a party", "msg_id", msgID)
	}
	return nil
}

func (s *MemStore) HardDelete(_ context.Context, msgID, bySender string) (*chatmodel.MessageModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[msgID]
	if !ok {
		return nil, errs.ErrRecordNotFound.WrapMsg("message not found", "msg_id", msgID)
	}
	if m.SenderID != bySender {
		return nil, errs.ErrUnauthorized.WrapMsg("caller is not the sender", "msg_id", msgID)
	}
	delete(s.byID, msgID)
	for i, x := range s.order {
		if x.MsgID == msgID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return m.Clone(), nil
}
