package message

import (
	"context"
	"time"

	chatmodel "CMProject/module/chat/model"
	"CMProject/tools/errs"
	"CMProject/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore 是 Store 的 Mongo 实现，所有变更都是单文档、身份前置过滤的更新。
type MongoStore struct {
	MsgColl *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	msg := chatmodel.MessageModel{}
	return &MongoStore{MsgColl: db.Collection(msg.TableName())}
}

func (s *MongoStore) Create(ctx context.Context, sender, receiver, body, kind string) (*chatmodel.MessageModel, error) {
	if sender == "" || receiver == "" {
		return nil, errs.ErrArgs.WrapMsg("sender/receiver empty")
	}
	if kind == "" {
		kind = chatmodel.KindText
	}
	m := &chatmodel.MessageModel{
		MsgID:      ids.GenerateString(),
		SenderID:   sender,
		ReceiverID: receiver,
		Body:       body,
		Kind:       kind,
		SendTime:   time.Now().UnixMilli(),
	}
	if _, err := s.MsgColl.InsertOne(ctx, m); err != nil {
		return nil, errs.ErrStorage.WrapMsg("insert message", "err", err)
	}
	return m, nil
}

func (s *MongoStore) ListConversation(ctx context.Context, viewer, peer string) ([]*chatmodel.MessageModel, error) {
	// 双向取数，各按 viewer 侧的 delete 位过滤
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": viewer, "receiver_id": peer, "sender_deleted": false},
		bson.M{"sender_id": peer, "receiver_id": viewer, "receiver_deleted": false},
	}}
	// msg_id 单调，作为同毫秒消息的次序保证
	sort := bson.D{{Key: "send_time", Value: 1}, {Key: "msg_id", Value: 1}}

	cur, err := s.MsgColl.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, errs.ErrStorage.WrapMsg("find conversation", "err", err)
	}
	var out []*chatmodel.MessageModel
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrStorage.WrapMsg("decode conversation", "err", err)
	}
	return out, nil
}

func (s *MongoStore) MarkRead(ctx context.Context, msgID, byReceiver string) (*chatmodel.MessageModel, bool, error) {
	res := s.MsgColl.FindOneAndUpdate(ctx,
		bson.M{"msg_id": msgID, "receiver_id": byReceiver, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var out chatmodel.MessageModel
	err := res.Decode(&out)
	if err == nil {
		return &out, true, nil
	}
	if err == mongo.ErrNoDocuments {
		// 非接收者 / 不存在 / 已读：一律 no-op
		return nil, false, nil
	}
	return nil, false, errs.ErrStorage.WrapMsg("mark read", "err", err)
}

func (s *MongoStore) UpdateBody(ctx context.Context, msgID, bySender, newBody string) (*chatmodel.MessageModel, error) {
	res := s.MsgColl.FindOneAndUpdate(ctx,
		bson.M{"msg_id": msgID, "sender_id": bySender},
		bson.M{"$set": bson.M{"body": newBody}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var out chatmodel.MessageModel
	err := res.Decode(&out)
	if err == nil {
		return &out, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, errs.ErrStorage.WrapMsg("update body", "err", err)
	}
	return nil, s.classifyMiss(ctx, msgID)
}

func (s *MongoStore) SoftDelete(ctx context.Context, msgID, byParty string) error {
	var m chatmodel.MessageModel
	if err := s.MsgColl.FindOne(ctx, bson.M{"msg_id": msgID}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return errs.ErrRecordNotFound.WrapMsg("message not found", "msg_id", msgID)
		}
		return errs.ErrStorage.WrapMsg("load message", "err", err)
	}

	var field string
	switch byParty {
	case m.SenderID:
		field = "sender_deleted"
	case m.ReceiverID:
		field = "receiver_deleted"
	default:
		return errs.ErrRecordNotFound.WrapMsg("caller is not a party", "msg_id", msgID)
	}

	if _, err := s.MsgColl.UpdateOne(ctx,
		bson.M{"msg_id": msgID},
		bson.M{"$set": bson.M{field: true}},
	); err != nil {
		return errs.ErrStorage.WrapMsg("soft delete", "err", err)
	}
	return nil
}

func (s *MongoStore) HardDelete(ctx context.Context, msgID, bySender string) (*chatmodel.MessageModel, error) {
	res := s.MsgColl.FindOneAndDelete(ctx, bson.M{"msg_id": msgID, "sender_id": bySender})
	var out chatmodel.MessageModel
	err := res.Decode(&out)
	if err == nil {
		return &out, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, errs.ErrStorage.WrapMsg("hard delete", "err", err)
	}
	return nil, s.classifyMiss(ctx, msgID)
}

// classifyMiss 区分“消息不存在”与“存在但身份不符”
func (s *MongoStore) classifyMiss(ctx context.Context, msgID string) error {
	n, err := s.MsgColl.CountDocuments(ctx, bson.M{"msg_id": msgID})
	if err != nil {
		return errs.ErrStorage.WrapMsg("count message", "err", err)
	}
	if n > 0 {
		return errs.ErrUnauthorized.WrapMsg("caller is not the sender", "msg_id", msgID)
	}
	return errs.ErrRecordNotFound.WrapMsg("message not found", "msg_id", msgID)
}
