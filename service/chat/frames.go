package chat

import (
	"encoding/json"
	"fmt"
	"time"

	chatmodel "CMProject/module/chat/model"
	"CMProject/tools/decode"
	"CMProject/tools/errs"
)

// ===== 线上事件名 =====

const (
	// client -> server
	EventAuth          = "auth"
	EventPing          = "ping"
	EventMessageSend   = "message:send"
	EventMessageRead   = "message:read"
	EventMessageUpdate = "message:update"
	EventDeleteForMe   = "message:delete-for-me"
	EventDeleteForAll  = "message:delete-for-everyone"
	EventTypingStart   = "typing:start"
	EventTypingStop    = "typing:stop"

	// server -> client
	EventPong              = "pong"
	EventMessageSent       = "message:sent"
	EventMessageReceived   = "message:received"
	EventMessageUpdated    = "message:updated"
	EventMessageDeleted    = "message:deleted-for-me"
	EventMessageDeletedAll = "message:deleted-for-everyone"
	EventNotificationNew   = "notification:new"
	EventPresenceOnline    = "presence:online"
	EventPresenceOffline   = "presence:offline"
	EventError             = "error"
)

// Frame 是统一的 JSON 业务帧。Payload 解码后是 map[string]any，
// 再按事件经 tools/decode 落到具体负载结构。
type Frame struct {
	Type    string `json:"type"`
	Ts      int64  `json:"ts,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	frame := &Frame{}
	if err := json.Unmarshal(raw, frame); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}
	return frame, nil
}

func (f *Frame) PayloadMap() (map[string]any, error) {
	if f.Payload == nil {
		return nil, errs.ErrArgs.WrapMsg("frame payload missing", "type", f.Type)
	}
	m, ok := f.Payload.(map[string]any)
	if !ok {
		return nil, errs.ErrArgs.WrapMsg("frame payload not an object", "type", f.Type)
	}
	return m, nil
}

// DecodePayload 把帧负载解码为具体结构 T。
func DecodePayload[T any](f *Frame) (*T, error) {
	m, err := f.PayloadMap()
	if err != nil {
		return nil, err
	}
	out, err := decode.DecodeMap[T](m)
	if err != nil {
		return nil, errs.ErrArgs.WrapMsg("decode payload", "type", f.Type, "err", err)
	}
	return out, nil
}

// Encode 序列化为线上的 JSON 字节；失败返回 nil（调用方按丢帧处理）。
func (f *Frame) Encode() []byte {
	b, err := json.Marshal(f)
	if err != nil {
		return nil
	}
	return b
}

// ===== 客户端负载 =====

type AuthPayload struct {
	Token     string `json:"token"`
	TokenHash string `json:"token_hash,omitempty"`
}

type SendPayload struct {
	ReceiverID string `json:"receiver_id"`
	Body       string `json:"body"`
	Kind       string `json:"kind,omitempty"`
}

type ReadPayload struct {
	MsgID string `json:"msg_id"`
}

type UpdatePayload struct {
	MsgID string `json:"msg_id"`
	Body  string `json:"body"`
}

type DeletePayload struct {
	MsgID string `json:"msg_id"`
}

type TypingPayload struct {
	PeerID string `json:"peer_id"`
}

// ===== 服务端负载 =====

type AuthAckPayload struct {
	OK         bool   `json:"ok"`
	UserID     string `json:"user_id"`
	ConnID     string `json:"conn_id"`
	GatewayID  string `json:"gateway_id"`
	ServerTime int64  `json:"server_time"`
}

type ReadEventPayload struct {
	MsgID string `json:"msg_id"`
}

type DeletedPayload struct {
	MsgID      string `json:"msg_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
}

type PresencePayload struct {
	UserID string `json:"user_id"`
}

type TypingEventPayload struct {
	PeerID   string `json:"peer_id"` // 正在输入的一方
	IsTyping bool   `json:"is_typing"`
}

type ErrorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// ---- 构造若干服务端帧 ----

func nowMS() int64 { return time.Now().UnixMilli() }

func BuildAuthAck(userID, connID, gatewayID string) *Frame {
	now := nowMS()
	return &Frame{
		Type: EventAuth,
		Ts:   now,
		Payload: AuthAckPayload{
			OK:         true,
			UserID:     userID,
			ConnID:     connID,
			GatewayID:  gatewayID,
			ServerTime: now,
		},
	}
}

func BuildPong() *Frame {
	return &Frame{Type: EventPong, Ts: nowMS()}
}

func BuildMessageEvent(event string, m *chatmodel.MessageModel) *Frame {
	return &Frame{Type: event, Ts: nowMS(), Payload: m}
}

func BuildReadEvent(msgID string) *Frame {
	return &Frame{Type: EventMessageRead, Ts: nowMS(), Payload: ReadEventPayload{MsgID: msgID}}
}

func BuildDeletedEvent(event string, m *chatmodel.MessageModel) *Frame {
	return &Frame{
		Type: event,
		Ts:   nowMS(),
		Payload: DeletedPayload{
			MsgID:      m.MsgID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
		},
	}
}

func BuildPresenceEvent(event, userID string) *Frame {
	return &Frame{Type: event, Ts: nowMS(), Payload: PresencePayload{UserID: userID}}
}

func BuildTypingEvent(from string, active bool) *Frame {
	event := EventTypingStop
	if active {
		event = EventTypingStart
	}
	return &Frame{Type: event, Ts: nowMS(), Payload: TypingEventPayload{PeerID: from, IsTyping: active}}
}

func BuildNotificationEvent(n *chatmodel.NotificationModel) *Frame {
	return &Frame{Type: EventNotificationNew, Ts: nowMS(), Payload: n}
}

func BuildErrorFrame(err error) *Frame {
	code := errs.CodeOf(err)
	msg := "server internal error"
	if ce := asCodeError(err); ce != nil {
		msg = ce.Msg
	}
	return &Frame{Type: EventError, Ts: nowMS(), Payload: ErrorPayload{Code: code, Msg: msg}}
}

func asCodeError(err error) *errs.CodeError {
	type causer interface{ Unwrap() error }
	for err != nil {
		if ce, ok := err.(*errs.CodeError); ok {
			return ce
		}
		u, ok := err.(causer)
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}
