package model

const (
	MsgTableName = "message" // 集合名
	KindText     = "text"    // 默认消息类型
)

// MessageModel 是一条单聊消息的持久化主体。
// 可见性规则：某一方的 deleted 位为 false 时对该方可见；
// 两侧都为 true 的行仅逻辑孤儿，除 hard delete 外不会被移除。
type MessageModel struct {
	MsgID      string `bson:"msg_id" json:"msg_id"`           // 服务端分配的消息ID（雪花，单调）
	SenderID   string `bson:"sender_id" json:"sender_id"`     // 发送者ID
	ReceiverID string `bson:"receiver_id" json:"receiver_id"` // 接收者ID
	Body       string `bson:"body" json:"body"`               // 文本内容
	Kind       string `bson:"kind" json:"kind"`               // 自由标签，默认 "text"
	SendTime   int64  `bson:"send_time" json:"send_time"`     // 发送时间(Unix ms)

	IsRead bool `bson:"is_read" json:"is_read"` // 仅接收方可置位

	SenderDeleted   bool `bson:"sender_deleted" json:"-"`   // 发送侧 delete-for-me
	ReceiverDeleted bool `bson:"receiver_deleted" json:"-"` // 接收侧 delete-for-me
}

func (*MessageModel) TableName() string { return MsgTableName }

// IsParty 判断 user 是否为该消息的一方。
func (m *MessageModel) IsParty(user string) bool {
	return user == m.SenderID || user == m.ReceiverID
}

// VisibleTo 按 viewer 所在侧的 delete 位判断可见性；非当事人一律不可见。
func (m *MessageModel) VisibleTo(viewer string) bool {
	switch viewer {
	case m.SenderID:
		return !m.SenderDeleted
	case m.ReceiverID:
		return !m.ReceiverDeleted
	default:
		return false
	}
}

// Clone 返回一份浅拷贝，供存储层对外暴露时隔离内部状态。
func (m *MessageModel) Clone() *MessageModel {
	cp := *m
	return &cp
}
