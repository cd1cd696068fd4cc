package chat

import (
	"encoding/json"
	"errors"
	"testing"

	chatmodel "CMProject/module/chat/model"
	"CMProject/tools/errs"
)

func TestParseFrameJSON(t *testing.T) {
	raw := []byte(`{"type":"message:send","ts":123,"payload":{"receiver_id":"2","body":"hi"}}`)
	f, err := ParseFrameJSON(raw)
	if err != nil {
		t.Fatalf("ParseFrameJSON failed: %v", err)
	}
	if f.Type != EventMessageSend || f.Ts != 123 {
		t.Fatalf("frame head = %+v", f)
	}

	p, err := DecodePayload[SendPayload](f)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if p.ReceiverID != "2" || p.Body != "hi" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestParseFrameJSONRejectsGarbage(t *testing.T) {
	if _, err := ParseFrameJSON([]byte("not json")); err == nil {
		t.Fatal("garbage accepted")
	}
	if _, err := ParseFrameJSON([]byte(`{"ts":1}`)); err == nil {
		t.Fatal("frame without type accepted")
	}
}

func TestDecodePayloadMissing(t *testing.T) {
	f := &Frame{Type: EventMessageSend}
	if _, err := DecodePayload[SendPayload](f); !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("missing payload error = %v, want ArgsError", err)
	}

	f = &Frame{Type: EventMessageSend, Payload: "scalar"}
	if _, err := DecodePayload[SendPayload](f); !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("scalar payload error = %v, want ArgsError", err)
	}
}

func TestBuildMessageEventRoundTrip(t *testing.T) {
	m := &chatmodel.MessageModel{
		MsgID: "m1", SenderID: "1", ReceiverID: "2",
		Body: "hi", Kind: "text", SendTime: 42,
		SenderDeleted: true, // json:"-"，不得上线
	}
	raw := BuildMessageEvent(EventMessageReceived, m).Encode()
	if raw == nil {
		t.Fatal("Encode returned nil")
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("wire frame not json: %v", err)
	}
	if got["type"] != EventMessageReceived {
		t.Fatalf("type = %v", got["type"])
	}
	payload := got["payload"].(map[string]any)
	if payload["msg_id"] != "m1" || payload["body"] != "hi" {
		t.Fatalf("payload = %v", payload)
	}
	if _, leaked := payload["sender_deleted"]; leaked {
		t.Fatal("per-side delete flag leaked onto the wire")
	}
}

func TestBuildTypingEvent(t *testing.T) {
	f := BuildTypingEvent("1", true)
	if f.Type != EventTypingStart {
		t.Fatalf("active typing type = %s", f.Type)
	}
	p := f.Payload.(TypingEventPayload)
	if p.PeerID != "1" || !p.IsTyping {
		t.Fatalf("payload = %+v", p)
	}

	if f := BuildTypingEvent("1", false); f.Type != EventTypingStop {
		t.Fatalf("inactive typing type = %s", f.Type)
	}
}

func TestBuildErrorFrame(t *testing.T) {
	f := BuildErrorFrame(errs.ErrArgs.WithDetail("receiver_id required"))
	p := f.Payload.(ErrorPayload)
	if p.Code != errs.ArgsError {
		t.Fatalf("code = %d, want %d", p.Code, errs.ArgsError)
	}

	// 包装过的错误也要能还原出码
	wrapped := errs.ErrRecordNotFound.WrapMsg("message not found", "msg_id", "x")
	f = BuildErrorFrame(wrapped)
	if f.Payload.(ErrorPayload).Code != errs.RecordNotFoundError {
		t.Fatalf("wrapped code = %d", f.Payload.(ErrorPayload).Code)
	}

	// 未知错误回退 internal
	f = BuildErrorFrame(json.Unmarshal([]byte("x"), &struct{}{}))
	if f.Payload.(ErrorPayload).Code != errs.ServerInternalError {
		t.Fatalf("fallback code = %d", f.Payload.(ErrorPayload).Code)
	}
}
