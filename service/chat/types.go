package chat

// Handler 处理一种线上事件；帧负载解码由各 handler 自己完成
type Handler interface {
	Type() string
	Handle(*Context, *Frame, *Client) error
}

type Context struct {
	S *Server
}
