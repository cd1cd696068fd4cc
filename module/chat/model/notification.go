package model

const NotificationTableName = "notification"

// NotificationModel 是投递成功后旁路生成的持久化通知行，
// 由外部通知子系统消费；消息核心只负责创建。
type NotificationModel struct {
	NotifyID    string `bson:"notify_id" json:"notify_id"`
	RecipientID string `bson:"recipient_id" json:"recipient_id"`
	Text        string `bson:"text" json:"text"`
	Kind        string `bson:"kind" json:"kind"`
	CreateTime  int64  `bson:"create_time" json:"create_time"` // Unix ms
}

func (*NotificationModel) TableName() string { return NotificationTableName }
