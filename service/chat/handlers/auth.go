package handler

import (
	"CMProject/service/chat"
	"CMProject/tools/errs"
	"CMProject/tools/security"
)

// AuthHandler 处理连接后的第一帧：校验 JWT，挂到在线表并回 ack。
// 校验失败即 fail closed，由 ws_server 关闭连接。
type AuthHandler struct {
	opts security.Options
}

func NewAuthHandler(opts security.Options) chat.Handler { return &AuthHandler{opts: opts} }

func (h *AuthHandler) Type() string { return chat.EventAuth }

func (h *AuthHandler) Handle(ctx *chat.Context, f *chat.Frame, cl *chat.Client) error {
	p, err := chat.DecodePayload[chat.AuthPayload](f)
	if err != nil {
		return err
	}
	if p.Token == "" {
		return errs.ErrTokenInvalid.WrapMsg("token missing")
	}

	claims, err := security.Verify(h.opts, p.Token, p.TokenHash)
	if err != nil {
		return errs.ErrTokenInvalid.WrapMsg("verify token", "err", err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return errs.ErrTokenInvalid.WrapMsg("subject missing")
	}

	cl.UserID = userID
	ctx.S.RegisterClient(userID, cl)

	cl.Enqueue(chat.BuildAuthAck(userID, cl.ConnID, ctx.S.Conf().GatewayID).Encode())
	return nil
}
