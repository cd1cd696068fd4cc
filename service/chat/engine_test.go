package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"CMProject/module/chat/message"
	chatmodel "CMProject/module/chat/model"
	"CMProject/tools/errs"
)

type notifyCall struct {
	Recipient string
	Text      string
	Kind      string
}

// notifyRecorder 收集旁路通知调用（旁路是异步的，经 channel 等待）
type notifyRecorder struct {
	ch chan notifyCall
}

func newNotifyRecorder() *notifyRecorder {
	return &notifyRecorder{ch: make(chan notifyCall, 16)}
}

func (r *notifyRecorder) Notify(_ context.Context, recipient, text, kind string) error {
	r.ch <- notifyCall{Recipient: recipient, Text: text, Kind: kind}
	return nil
}

func (r *notifyRecorder) wait(t *testing.T) notifyCall {
	t.Helper()
	select {
	case c := <-r.ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("notifier not invoked")
		return notifyCall{}
	}
}

func newTestEngine(t *testing.T) (*Engine, *ConnManager, *message.MemStore, *notifyRecorder) {
	t.Helper()
	store := message.NewMemStore()
	mgr := NewConnManagerWithConf(ManagerConf{SweepEvery: time.Hour}, "gw-test")
	t.Cleanup(mgr.Close)
	rec := newNotifyRecorder()
	return NewEngine(store, mgr, rec), mgr, store, rec
}

func online(t *testing.T, mgr *ConnManager, user string) *Client {
	t.Helper()
	c := NewClient("c-"+user, user, nil, 16)
	mgr.Register(user, c)
	return c
}

// nextFrame 从客户端发送队列取一帧并解码；空队列视为没有推送
func nextFrame(t *testing.T, c *Client) *Frame {
	t.Helper()
	select {
	case raw := <-c.Send:
		f := &Frame{}
		if err := json.Unmarshal(raw, f); err != nil {
			t.Fatalf("bad frame on wire: %v", err)
		}
		return f
	default:
		t.Fatal("expected a frame, queue empty")
		return nil
	}
}

func noFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		f := &Frame{}
		_ = json.Unmarshal(raw, f)
		t.Fatalf("unexpected frame type=%s", f.Type)
	default:
	}
}

func payloadField(t *testing.T, f *Frame, key string) any {
	t.Helper()
	m, ok := f.Payload.(map[string]any)
	if !ok {
		t.Fatalf("frame %s payload not an object: %T", f.Type, f.Payload)
	}
	return m[key]
}

// downStore 模拟持久层不可用：落库即失败，其余走内存实现
type downStore struct {
	*message.MemStore
}

func (s *downStore) Create(context.Context, string, string, string, string) (*chatmodel.MessageModel, error) {
	return nil, errs.ErrStorage.WrapMsg("db down")
}

// 落库失败对本次 send 致命：错误上抛，任何一方都不收帧，旁路通知不触发
func TestSendAbortsOnStorageFailure(t *testing.T) {
	store := &downStore{MemStore: message.NewMemStore()}
	mgr := NewConnManagerWithConf(ManagerConf{SweepEvery: time.Hour}, "gw-test")
	t.Cleanup(mgr.Close)
	rec := newNotifyRecorder()
	e := NewEngine(store, mgr, rec)

	sender := online(t, mgr, "1")
	receiver := online(t, mgr, "2")

	_, err := e.Send(context.Background(), "1", "2", "hi", "text")
	if !errors.Is(err, errs.ErrStorage) {
		t.Fatalf("Send error = %v, want StorageError", err)
	}

	noFrame(t, sender)
	noFrame(t, receiver)
	select {
	case call := <-rec.ch:
		t.Fatalf("notifier invoked despite storage failure: %+v", call)
	case <-time.After(100 * time.Millisecond):
	}
}

// 接收方离线：消息落库、发送方拿到回执、旁路通知照发，不向接收方推任何帧
func TestSendReceiverOffline(t *testing.T) {
	e, mgr, store, rec := newTestEngine(t)
	sender := online(t, mgr, "1")

	m, err := e.Send(context.Background(), "1", "2", "hi", "text")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if m.MsgID == "" || m.SendTime == 0 {
		t.Fatalf("server-side fields not assigned: %+v", m)
	}

	ack := nextFrame(t, sender)
	if ack.Type != EventMessageSent {
		t.Fatalf("sender ack type = %s, want %s", ack.Type, EventMessageSent)
	}
	if got := payloadField(t, ack, "msg_id"); got != m.MsgID {
		t.Fatalf("ack msg_id = %v, want %s", got, m.MsgID)
	}

	call := rec.wait(t)
	if call.Recipient != "2" || call.Text != "hi" {
		t.Fatalf("notify call = %+v", call)
	}

	// 落库可经历史拉取兜底
	list, err := store.ListConversation(context.Background(), "2", "1")
	if err != nil || len(list) != 1 {
		t.Fatalf("offline receiver history = %v,%v want 1 row", list, err)
	}
}

// 接收方在线：message:received 且随后 notification:new；发送方拿回执
func TestSendReceiverOnline(t *testing.T) {
	e, mgr, _, rec := newTestEngine(t)
	sender := online(t, mgr, "1")
	receiver := online(t, mgr, "2")

	m, err := e.Send(context.Background(), "1", "2", "hello", "text")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	got := nextFrame(t, receiver)
	if got.Type != EventMessageReceived {
		t.Fatalf("receiver frame type = %s, want %s", got.Type, EventMessageReceived)
	}
	if body := payloadField(t, got, "body"); body != "hello" {
		t.Fatalf("received body = %v", body)
	}

	notif := nextFrame(t, receiver)
	if notif.Type != EventNotificationNew {
		t.Fatalf("second receiver frame type = %s, want %s", notif.Type, EventNotificationNew)
	}

	ack := nextFrame(t, sender)
	if ack.Type != EventMessageSent || payloadField(t, ack, "msg_id") != m.MsgID {
		t.Fatalf("sender ack = %+v", ack)
	}

	rec.wait(t)
}

// 已读回执：只有真实接收方能翻转；翻转时发送方收到 message:read
func TestMarkReadNotifiesSender(t *testing.T) {
	e, mgr, _, rec := newTestEngine(t)
	sender := online(t, mgr, "1")

	m, err := e.Send(context.Background(), "1", "2", "hi", "text")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	nextFrame(t, sender) // 消费回执
	rec.wait(t)

	// 第三方冒充接收方：no-op，不报错也不推送
	if err := e.MarkRead(context.Background(), "99", m.MsgID); err != nil {
		t.Fatalf("spoofed MarkRead errored: %v", err)
	}
	noFrame(t, sender)

	if err := e.MarkRead(context.Background(), "2", m.MsgID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	f := nextFrame(t, sender)
	if f.Type != EventMessageRead || payloadField(t, f, "msg_id") != m.MsgID {
		t.Fatalf("read receipt = %+v", f)
	}

	// 重复已读不再推送
	if err := e.MarkRead(context.Background(), "2", m.MsgID); err != nil {
		t.Fatalf("repeat MarkRead errored: %v", err)
	}
	noFrame(t, sender)
}

// 单侧删除只回执调用方；对端毫无感知
func TestDeleteForMeIsInvisibleToPeer(t *testing.T) {
	e, mgr, store, rec := newTestEngine(t)
	sender := online(t, mgr, "1")
	receiver := online(t, mgr, "2")

	m, err := e.Send(context.Background(), "1", "2", "secret", "text")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	nextFrame(t, receiver)
	nextFrame(t, receiver)
	nextFrame(t, sender)
	rec.wait(t)

	if err := e.DeleteForMe(context.Background(), "2", m.MsgID); err != nil {
		t.Fatalf("DeleteForMe failed: %v", err)
	}
	ack := nextFrame(t, receiver)
	if ack.Type != EventMessageDeleted {
		t.Fatalf("caller ack type = %s", ack.Type)
	}
	noFrame(t, sender)

	still, _ := store.ListConversation(context.Background(), "1", "2")
	if len(still) != 1 {
		t.Fatalf("peer view lost the message: %d rows", len(still))
	}
}

// 整行删除：双方都收到 deleted 事件，历史双向消失
func TestDeleteForEveryone(t *testing.T) {
	e, mgr, store, rec := newTestEngine(t)
	sender := online(t, mgr, "1")
	receiver := online(t, mgr, "2")

	m, err := e.Send(context.Background(), "1", "2", "oops", "text")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	nextFrame(t, receiver)
	nextFrame(t, receiver)
	nextFrame(t, sender)
	rec.wait(t)

	if err := e.DeleteForEveryone(context.Background(), "1", m.MsgID); err != nil {
		t.Fatalf("DeleteForEveryone failed: %v", err)
	}
	for _, c := range []*Client{receiver, sender} {
		f := nextFrame(t, c)
		if f.Type != EventMessageDeletedAll || payloadField(t, f, "msg_id") != m.MsgID {
			t.Fatalf("deleted event for %s = %+v", c.UserID, f)
		}
	}

	for viewer, peer := range map[string]string{"1": "2", "2": "1"} {
		list, _ := store.ListConversation(context.Background(), viewer, peer)
		if len(list) != 0 {
			t.Fatalf("viewer %s still sees %d rows", viewer, len(list))
		}
	}
}

// 编辑：新消息体推给双方
func TestEditPushesUpdate(t *testing.T) {
	e, mgr, _, rec := newTestEngine(t)
	sender := online(t, mgr, "1")
	receiver := online(t, mgr, "2")

	m, err := e.Send(context.Background(), "1", "2", "typo", "text")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	nextFrame(t, receiver)
	nextFrame(t, receiver)
	nextFrame(t, sender)
	rec.wait(t)

	if _, err := e.Edit(context.Background(), "1", m.MsgID, "fixed"); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	for _, c := range []*Client{receiver, sender} {
		f := nextFrame(t, c)
		if f.Type != EventMessageUpdated || payloadField(t, f, "body") != "fixed" {
			t.Fatalf("update frame for %s = %+v", c.UserID, f)
		}
	}
}

// 两条快速消息保持发出顺序（落库序与推送序一致）
func TestRapidSendsKeepOrder(t *testing.T) {
	e, mgr, store, rec := newTestEngine(t)
	receiver := online(t, mgr, "2")

	for _, body := range []string{"first", "second"} {
		if _, err := e.Send(context.Background(), "1", "2", body, "text"); err != nil {
			t.Fatalf("Send %q failed: %v", body, err)
		}
		rec.wait(t)
	}

	f1 := nextFrame(t, receiver)
	nextFrame(t, receiver) // notification:new for first
	f2 := nextFrame(t, receiver)
	if payloadField(t, f1, "body") != "first" || payloadField(t, f2, "body") != "second" {
		t.Fatalf("push order wrong: %v then %v",
			payloadField(t, f1, "body"), payloadField(t, f2, "body"))
	}

	list, _ := store.ListConversation(context.Background(), "2", "1")
	if len(list) != 2 || list[0].Body != "first" || list[1].Body != "second" {
		t.Fatalf("persisted order wrong: %+v", list)
	}
}

// typing 纯转发：在线才推，离线静默丢弃
func TestTypingForwardAndDrop(t *testing.T) {
	e, mgr, _, _ := newTestEngine(t)
	receiver := online(t, mgr, "2")

	e.Typing("1", "2", true)
	f := nextFrame(t, receiver)
	if f.Type != EventTypingStart || payloadField(t, f, "peer_id") != "1" {
		t.Fatalf("typing frame = %+v", f)
	}

	e.Typing("1", "2", false)
	f = nextFrame(t, receiver)
	if f.Type != EventTypingStop {
		t.Fatalf("typing stop frame = %+v", f)
	}

	// 对端离线：不报错、不积压
	e.Typing("1", "offline-user", true)
	noFrame(t, receiver)
}
