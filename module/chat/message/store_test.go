package message

import (
	"context"
	"errors"
	"testing"

	"CMProject/tools/errs"
)

func newTestStore() *MemStore {
	return NewMemStore()
}

func TestListConversationOrdered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	for _, body := range []string{"a", "b", "c", "d"} {
		if _, err := s.Create(ctx, "1", "2", body, ""); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	list, err := s.ListConversation(ctx, "1", "2")
	if err != nil {
		t.Fatalf("ListConversation failed: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("got %d messages, want 4", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].SendTime < list[i-1].SendTime {
			t.Fatalf("messages out of send_time order at %d", i)
		}
	}
	if list[0].Body != "a" || list[3].Body != "d" {
		t.Fatalf("issue order not preserved: %s..%s", list[0].Body, list[3].Body)
	}
	if list[0].Kind != "text" {
		t.Fatalf("default kind = %q, want text", list[0].Kind)
	}
}

func TestSoftDeleteOneSidedVisibility(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	m, err := s.Create(ctx, "1", "2", "hi", "text")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.SoftDelete(ctx, m.MsgID, "2"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	mine, _ := s.ListConversation(ctx, "2", "1")
	if len(mine) != 0 {
		t.Fatalf("deleting party still sees %d messages", len(mine))
	}
	theirs, _ := s.ListConversation(ctx, "1", "2")
	if len(theirs) != 1 {
		t.Fatalf("peer lost the message: got %d", len(theirs))
	}
}

func TestSoftDeleteByStrangerIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	m, _ := s.Create(ctx, "1", "2", "hi", "text")
	err := s.SoftDelete(ctx, m.MsgID, "99")
	if !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("stranger soft delete: got %v, want ErrRecordNotFound", err)
	}
}

func TestHardDeleteSenderOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	m, _ := s.Create(ctx, "1", "2", "hi", "text")

	if _, err := s.HardDelete(ctx, m.MsgID, "2"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("receiver hard delete: got %v, want ErrUnauthorized", err)
	}

	removed, err := s.HardDelete(ctx, m.MsgID, "1")
	if err != nil {
		t.Fatalf("sender hard delete failed: %v", err)
	}
	if removed.MsgID != m.MsgID {
		t.Fatalf("removed wrong row: %s", removed.MsgID)
	}

	for _, viewer := range []string{"1", "2"} {
		list, _ := s.ListConversation(ctx, viewer, "1")
		if viewer == "1" {
			list, _ = s.ListConversation(ctx, viewer, "2")
		}
		if len(list) != 0 {
			t.Fatalf("viewer %s still sees the hard-deleted message", viewer)
		}
	}

	if _, err := s.HardDelete(ctx, m.MsgID, "1"); !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("double hard delete: got %v, want ErrRecordNotFound", err)
	}
}

func TestMarkReadSpoofIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	m, _ := s.Create(ctx, "1", "2", "hi", "text")

	// 发送者伪造回执：no-op，不是错误
	_, flipped, err := s.MarkRead(ctx, m.MsgID, "1")
	if err != nil {
		t.Fatalf("MarkRead returned error: %v", err)
	}
	if flipped {
		t.Fatalf("sender spoofed a read receipt")
	}
	list, _ := s.ListConversation(ctx, "2", "1")
	if list[0].IsRead {
		t.Fatalf("read flag set by non-receiver")
	}

	read, flipped, err := s.MarkRead(ctx, m.MsgID, "2")
	if err != nil || !flipped {
		t.Fatalf("receiver MarkRead: flipped=%v err=%v", flipped, err)
	}
	if !read.IsRead || read.SenderID != "1" {
		t.Fatalf("MarkRead returned stale row: %+v", read)
	}
	list, _ = s.ListConversation(ctx, "1", "2")
	if !list[0].IsRead {
		t.Fatalf("read flag not persisted")
	}
}

func TestUpdateBodyAuthorization(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	m, _ := s.Create(ctx, "1", "2", "hi", "text")

	if _, err := s.UpdateBody(ctx, m.MsgID, "2", "hacked"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("receiver edit: got %v, want ErrUnauthorized", err)
	}
	list, _ := s.ListConversation(ctx, "1", "2")
	if list[0].Body != "hi" {
		t.Fatalf("body changed by unauthorized edit: %q", list[0].Body)
	}

	updated, err := s.UpdateBody(ctx, m.MsgID, "1", "hi there")
	if err != nil {
		t.Fatalf("sender edit failed: %v", err)
	}
	if updated.Body != "hi there" {
		t.Fatalf("updated body = %q", updated.Body)
	}

	if _, err := s.UpdateBody(ctx, "no-such-id", "1", "x"); !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("missing id edit: got %v, want ErrRecordNotFound", err)
	}
}

func TestBothSidesDeletedRowIsRetained(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	m, _ := s.Create(ctx, "1", "2", "hi", "text")
	_ = s.SoftDelete(ctx, m.MsgID, "1")
	_ = s.SoftDelete(ctx, m.MsgID, "2")

	for _, viewer := range []string{"1", "2"} {
		peer := "2"
		if viewer == "2" {
			peer = "1"
		}
		list, _ := s.ListConversation(ctx, viewer, peer)
		if len(list) != 0 {
			t.Fatalf("viewer %s sees a both-sides-deleted row", viewer)
		}
	}

	// 行保留：发送者仍可硬删除
	if _, err := s.HardDelete(ctx, m.MsgID, "1"); err != nil {
		t.Fatalf("row was purged, hard delete failed: %v", err)
	}
}
