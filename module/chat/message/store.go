package message

import (
	"context"

	chatmodel "CMProject/module/chat/model"
)

// Store 是消息持久层契约。实现必须支持并发写入：
// 每行独立，变更接口均为单行、带身份校验的操作，不需要跨行锁。
//
// 错误约定（tools/errs）：
//   - ErrStorage        底层存储不可用，对触发请求致命
//   - ErrUnauthorized   调用者不是该操作要求的 sender
//   - ErrRecordNotFound 消息不存在 / 已被硬删除 / 调用者不是当事人（SoftDelete）
type Store interface {
	// Create 分配消息ID与发送时间戳；read 位与两侧 delete 位均为 false。
	Create(ctx context.Context, sender, receiver, body, kind string) (*chatmodel.MessageModel, error)

	// ListConversation 返回 viewer 与 peer 之间的全部消息，
	// 按 viewer 自己一侧的 delete 位过滤，send_time 升序。
	ListConversation(ctx context.Context, viewer, peer string) ([]*chatmodel.MessageModel, error)

	// MarkRead 仅当 byReceiver 是接收者时置 read=true；
	// 否则 no-op，flipped=false（伪造回执不算错误）。
	// flipped=true 时返回更新后的消息，供上层向发送方推已读回执。
	MarkRead(ctx context.Context, msgID, byReceiver string) (m *chatmodel.MessageModel, flipped bool, err error)

	// UpdateBody 仅发送者可改写消息体；返回更新后的消息。
	UpdateBody(ctx context.Context, msgID, bySender, newBody string) (*chatmodel.MessageModel, error)

	// SoftDelete 置 byParty 所在一侧的 delete 位。
	SoftDelete(ctx context.Context, msgID, byParty string) error

	// HardDelete 仅发送者可整行删除；返回被删除的行，便于上层向双方广播。
	HardDelete(ctx context.Context, msgID, bySender string) (*chatmodel.MessageModel, error)
}
