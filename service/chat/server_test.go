package chat

import (
	"testing"
	"time"

	"CMProject/module/chat/message"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mgr := NewConnManagerWithConf(ManagerConf{SweepEvery: time.Hour}, "gw-test")
	t.Cleanup(mgr.Close)
	engine := NewEngine(message.NewMemStore(), mgr, nil)
	return NewServer(ServerConf{GatewayID: "gw-test"}, mgr, engine)
}

func TestPresenceBroadcastOnRegister(t *testing.T) {
	s := newTestServer(t)

	watcher := NewClient("c-2", "2", nil, 16)
	s.RegisterClient("2", watcher)

	joiner := NewClient("c-1", "1", nil, 16)
	s.RegisterClient("1", joiner)

	f := nextFrame(t, watcher)
	if f.Type != EventPresenceOnline || payloadField(t, f, "user_id") != "1" {
		t.Fatalf("watcher frame = %+v", f)
	}
	// 上线者自己不收自己的上线广播
	noFrame(t, joiner)
}

func TestPresenceBroadcastOnUnregister(t *testing.T) {
	s := newTestServer(t)

	watcher := NewClient("c-2", "2", nil, 16)
	s.RegisterClient("2", watcher)
	leaver := NewClient("c-1", "1", nil, 16)
	s.RegisterClient("1", leaver)
	nextFrame(t, watcher) // 消费上线广播

	s.UnregisterClient("1", leaver)
	f := nextFrame(t, watcher)
	if f.Type != EventPresenceOffline || payloadField(t, f, "user_id") != "1" {
		t.Fatalf("watcher frame = %+v", f)
	}
	if _, ok := s.ConnMgr().Lookup("1"); ok {
		t.Fatal("user still registered after unregister")
	}
}

func TestStaleUnregisterNoBroadcast(t *testing.T) {
	s := newTestServer(t)

	watcher := NewClient("c-2", "2", nil, 16)
	s.RegisterClient("2", watcher)

	old := NewClient("c-old", "1", nil, 16)
	s.RegisterClient("1", old)
	nextFrame(t, watcher)

	fresh := NewClient("c-new", "1", nil, 16)
	s.RegisterClient("1", fresh)
	nextFrame(t, watcher) // 重新握手再广播一次上线

	// 旧连接读循环收尾时的注销不应产生下线广播
	s.UnregisterClient("1", old)
	noFrame(t, watcher)

	if got, ok := s.ConnMgr().Lookup("1"); !ok || got != fresh {
		t.Fatal("fresh connection lost to stale unregister")
	}
}
