package handler

import (
	"CMProject/service/chat"
)

// PingHandler 应用层 ping（协议层 ping/pong 之外，给不方便发 control frame 的客户端用）
type PingHandler struct{}

func NewPingHandler() chat.Handler { return &PingHandler{} }

func (h *PingHandler) Type() string { return chat.EventPing }

func (h *PingHandler) Handle(_ *chat.Context, _ *chat.Frame, cl *chat.Client) error {
	cl.Enqueue(chat.BuildPong().Encode())
	return nil
}
