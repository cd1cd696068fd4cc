package handler

import (
	"context"
	"time"

	"CMProject/service/chat"
	"CMProject/tools/errs"
)

const opTimeout = 10 * time.Second

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// ===== message:send =====

type SendHandler struct{}

func NewSendHandler() chat.Handler { return &SendHandler{} }

func (h *SendHandler) Type() string { return chat.EventMessageSend }

func (h *SendHandler) Handle(ctx *chat.Context, f *chat.Frame, cl *chat.Client) error {
	p, err := chat.DecodePayload[chat.SendPayload](f)
	if err != nil {
		return err
	}
	if p.ReceiverID == "" {
		return errs.ErrArgs.WrapMsg("receiver_id missing")
	}
	if p.Body == "" {
		return errs.ErrArgs.WrapMsg("body missing")
	}

	c, cancel := opCtx()
	defer cancel()
	// 回执（message:sent）由引擎在落库成功后推送
	_, err = ctx.S.Engine().Send(c, cl.UserID, p.ReceiverID, p.Body, p.Kind)
	return err
}

// ===== message:read =====

type ReadHandler struct{}

func NewReadHandler() chat.Handler { return &ReadHandler{} }

func (h *ReadHandler) Type() string { return chat.EventMessageRead }

func (h *ReadHandler) Handle(ctx *chat.Context, f *chat.Frame, cl *chat.Client) error {
	p, err := chat.DecodePayload[chat.ReadPayload](f)
	if err != nil {
		return err
	}
	c, cancel := opCtx()
	defer cancel()
	return ctx.S.Engine().MarkRead(c, cl.UserID, p.MsgID)
}

// ===== message:update =====

type UpdateHandler struct{}

func NewUpdateHandler() chat.Handler { return &UpdateHandler{} }

func (h *UpdateHandler) Type() string { return chat.EventMessageUpdate }

func (h *UpdateHandler) Handle(ctx *chat.Context, f *chat.Frame, cl *chat.Client) error {
	p, err := chat.DecodePayload[chat.UpdatePayload](f)
	if err != nil {
		return err
	}
	if p.Body == "" {
		return errs.ErrArgs.WrapMsg("body missing")
	}
	c, cancel := opCtx()
	defer cancel()
	_, err = ctx.S.Engine().Edit(c, cl.UserID, p.MsgID, p.Body)
	return err
}

// ===== message:delete-for-me =====

type DeleteForMeHandler struct{}

func NewDeleteForMeHandler() chat.Handler { return &DeleteForMeHandler{} }

func (h *DeleteForMeHandler) Type() string { return chat.EventDeleteForMe }

func (h *DeleteForMeHandler) Handle(ctx *chat.Context, f *chat.Frame, cl *chat.Client) error {
	p, err := chat.DecodePayload[chat.DeletePayload](f)
	if err != nil {
		return err
	}
	c, cancel := opCtx()
	defer cancel()
	return ctx.S.Engine().DeleteForMe(c, cl.UserID, p.MsgID)
}

// ===== message:delete-for-everyone =====

type DeleteForAllHandler struct{}

func NewDeleteForAllHandler() chat.Handler { return &DeleteForAllHandler{} }

func (h *DeleteForAllHandler) Type() string { return chat.EventDeleteForAll }

func (h *DeleteForAllHandler) Handle(ctx *chat.Context, f *chat.Frame, cl *chat.Client) error {
	p, err := chat.DecodePayload[chat.DeletePayload](f)
	if err != nil {
		return err
	}
	c, cancel := opCtx()
	defer cancel()
	return ctx.S.Engine().DeleteForEveryone(c, cl.UserID, p.MsgID)
}
