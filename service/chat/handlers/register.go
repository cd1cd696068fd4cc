package handler

import (
	"CMProject/service/chat"
	"CMProject/tools/security"
)

// RegisterAll 把全部线上事件挂到分发表
func RegisterAll(s *chat.Server, authOpts security.Options) {
	d := s.Disp()
	d.Register(NewAuthHandler(authOpts))
	d.Register(NewPingHandler())
	d.Register(NewSendHandler())
	d.Register(NewReadHandler())
	d.Register(NewUpdateHandler())
	d.Register(NewDeleteForMeHandler())
	d.Register(NewDeleteForAllHandler())
	d.Register(NewTypingStartHandler())
	d.Register(NewTypingStopHandler())
}
