package handler

import (
	"CMProject/service/chat"
)

// TypingHandler 输入状态纯转发：对端离线静默丢弃，无 TTL，无回执。
// start/stop 两个事件共用一个实现。
type TypingHandler struct {
	event string
}

func NewTypingStartHandler() chat.Handler { return &TypingHandler{event: chat.EventTypingStart} }
func NewTypingStopHandler() chat.Handler  { return &TypingHandler{event: chat.EventTypingStop} }

func (h *TypingHandler) Type() string { return h.event }

func (h *TypingHandler) Handle(ctx *chat.Context, f *chat.Frame, cl *chat.Client) error {
	p, err := chat.DecodePayload[chat.TypingPayload](f)
	if err != nil {
		return err
	}
	if p.PeerID == "" {
		return nil // 无目标，直接丢
	}
	ctx.S.Engine().Typing(cl.UserID, p.PeerID, h.event == chat.EventTypingStart)
	return nil
}
