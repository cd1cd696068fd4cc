package chat

import (
	"context"
	"time"

	"CMProject/logger"
	"CMProject/module/chat/message"
	chatmodel "CMProject/module/chat/model"
	"CMProject/tools/safe"
)

// Notifier 是通知桥的创建契约；对投递链路严格 fire-and-forget。
type Notifier interface {
	Notify(ctx context.Context, recipient, text, kind string) error
}

// NotifierFunc 适配器（单测/空实现用）
type NotifierFunc func(ctx context.Context, recipient, text, kind string) error

func (f NotifierFunc) Notify(ctx context.Context, recipient, text, kind string) error {
	return f(ctx, recipient, text, kind)
}

const notifyTimeout = 5 * time.Second

// Engine 编排一条消息的生命周期：
// 落库 -> 查在线表 -> 尽力推送 -> 回执发送方 -> 旁路通知。
// 落库是唯一会阻塞连接协程的悬挂点；推送全部是非阻塞入队。
type Engine struct {
	store    message.Store
	mgr      *ConnManager
	notifier Notifier
}

func NewEngine(store message.Store, mgr *ConnManager, notifier Notifier) *Engine {
	return &Engine{store: store, mgr: mgr, notifier: notifier}
}

func (e *Engine) Store() message.Store { return e.store }

// Send 持久化并投递一条消息。
// 落库失败对请求致命；此后任何推送/通知失败都不回滚、不上抛。
func (e *Engine) Send(ctx context.Context, sender, receiver, body, kind string) (*chatmodel.MessageModel, error) {
	// 1) 落库：先于任何推送（durability-before-delivery）
	m, err := e.store.Create(ctx, sender, receiver, body, kind)
	if err != nil {
		return nil, err
	}

	// 2/3) 接收方在线则尽力推送；离线由历史拉取兜底
	delivered := e.pushTo(receiver, BuildMessageEvent(EventMessageReceived, m))

	// 4) 无条件回执发送方（带服务端分配的 id 与时间戳）
	e.pushTo(sender, BuildMessageEvent(EventMessageSent, m))

	// 5) 旁路通知：panic/错误都与本次 send 隔离
	if e.notifier != nil {
		text, k := m.Body, m.Kind
		safe.SafeGo(func() {
			nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := e.notifier.Notify(nctx, receiver, text, k); err != nil {
				logger.Errorf("[Engine] notify bridge failed recipient=%s err=%v", receiver, err)
			}
		})
	}

	// 6) 在线的接收方额外收到一条轻量通知事件
	if delivered {
		e.pushTo(receiver, BuildNotificationEvent(&chatmodel.NotificationModel{
			RecipientID: receiver,
			Text:        m.Body,
			Kind:        m.Kind,
			CreateTime:  m.SendTime,
		}))
	}

	return m, nil
}

// MarkRead 由接收方触发；非接收方调用是 no-op。
// 真正翻转了 read 位且发送方在线时，向发送方推 message:read（仅带消息 id）。
func (e *Engine) MarkRead(ctx context.Context, caller, msgID string) error {
	m, flipped, err := e.store.MarkRead(ctx, msgID, caller)
	if err != nil {
		return err
	}
	if flipped {
		e.pushTo(m.SenderID, BuildReadEvent(m.MsgID))
	}
	return nil
}

// Edit 改写消息体（仅发送者）；成功后把完整新消息推给接收方并回显给调用方。
func (e *Engine) Edit(ctx context.Context, caller, msgID, newBody string) (*chatmodel.MessageModel, error) {
	m, err := e.store.UpdateBody(ctx, msgID, caller, newBody)
	if err != nil {
		return nil, err
	}
	e.pushTo(m.ReceiverID, BuildMessageEvent(EventMessageUpdated, m))
	e.pushTo(m.SenderID, BuildMessageEvent(EventMessageUpdated, m))
	return m, nil
}

// DeleteForMe 只置调用方一侧的 delete 位；对端完全无感知。
func (e *Engine) DeleteForMe(ctx context.Context, caller, msgID string) error {
	if err := e.store.SoftDelete(ctx, msgID, caller); err != nil {
		return err
	}
	// 仅回执调用方自己
	e.pushTo(caller, &Frame{Type: EventMessageDeleted, Ts: nowMS(), Payload: DeletePayload{MsgID: msgID}})
	return nil
}

// DeleteForEveryone 仅发送者可整行删除；双方都会被告知。
func (e *Engine) DeleteForEveryone(ctx context.Context, caller, msgID string) error {
	m, err := e.store.HardDelete(ctx, msgID, caller)
	if err != nil {
		return err
	}
	e.pushTo(m.ReceiverID, BuildDeletedEvent(EventMessageDeletedAll, m))
	e.pushTo(m.SenderID, BuildDeletedEvent(EventMessageDeletedAll, m))
	return nil
}

// ListConversation 供 HTTP 历史面直接调用
func (e *Engine) ListConversation(ctx context.Context, viewer, peer string) ([]*chatmodel.MessageModel, error) {
	return e.store.ListConversation(ctx, viewer, peer)
}

// Typing 纯转发：对端在线才推，离线静默丢弃。不落库、不重试、无回执。
func (e *Engine) Typing(from, to string, active bool) {
	e.pushTo(to, BuildTypingEvent(from, active))
}

// pushTo 尽力推送：离线/队列满都只算未投递，绝不报错
func (e *Engine) pushTo(user string, f *Frame) bool {
	cl, ok := e.mgr.Lookup(user)
	if !ok {
		return false
	}
	payload := f.Encode()
	if payload == nil {
		logger.Errorf("[Engine] encode frame failed type=%s user=%s", f.Type, user)
		return false
	}
	return cl.Enqueue(payload)
}
