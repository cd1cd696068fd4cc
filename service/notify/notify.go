package notify

import (
	"context"
	"encoding/json"
	"time"

	"CMProject/logger"
	chatmodel "CMProject/module/chat/model"
	"CMProject/service/kafka"
	"CMProject/service/mgo"
	"CMProject/service/natsx"
	"CMProject/tools/errs"
	"CMProject/tools/ids"
)

const (
	TopicNotifications = "im_notifications"
	SubjectEmailSend   = "im.email.send"
)

// Bridge 把"新消息"转成通知行 + 下游异步任务。
// 通知行落库是硬边界；Kafka/NATS 是旁路，失败只记日志。
type Bridge struct {
	EmailEnabled bool
}

func NewBridge(emailEnabled bool) *Bridge {
	return &Bridge{EmailEnabled: emailEnabled}
}

type emailJob struct {
	NotifyID    string `json:"notify_id"`
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
	CreateTime  int64  `json:"create_time"`
}

func (b *Bridge) Notify(ctx context.Context, recipient, text, kind string) error {
	row := &chatmodel.NotificationModel{
		NotifyID:    ids.GenerateString(),
		RecipientID: recipient,
		Text:        text,
		Kind:        kind,
		CreateTime:  time.Now().UnixMilli(),
	}

	db, ok := mgo.TryGetDB()
	if !ok {
		return errs.ErrStorage.WithDetail("mongo not ready")
	}
	if _, err := db.Collection(row.TableName()).InsertOne(ctx, row); err != nil {
		return errs.ErrStorage.WrapMsg("insert notification", "err", err)
	}

	payload, err := json.Marshal(row)
	if err != nil {
		return errs.Wrap(err)
	}
	if err := kafka.PublishAsync(TopicNotifications, recipient, payload); err != nil {
		logger.Warnf("[notify] kafka publish skipped: %v", err)
	}

	if b.EmailEnabled {
		job, _ := json.Marshal(emailJob{
			NotifyID:    row.NotifyID,
			RecipientID: row.RecipientID,
			Text:        row.Text,
			CreateTime:  row.CreateTime,
		})
		if err := natsx.Publish(SubjectEmailSend, job); err != nil {
			logger.Warnf("[notify] email job skipped: %v", err)
		}
	}
	return nil
}
