package errs

// 业务错误码：1xxxx 系统级，2xxxx 消息域
const (
	ServerInternalError = 10001
	ArgsError           = 10002
	TokenInvalidError   = 10003

	UnauthorizedError   = 20001
	RecordNotFoundError = 20002
	StorageError        = 20003
)

var (
	ErrInternalServer = NewCodeError(ServerInternalError, "server internal error")
	ErrArgs           = NewCodeError(ArgsError, "invalid argument")
	ErrTokenInvalid   = NewCodeError(TokenInvalidError, "token invalid or expired")

	// ErrUnauthorized 调用方不是该操作要求的 sender/receiver
	ErrUnauthorized = NewCodeError(UnauthorizedError, "unauthorized")
	// ErrRecordNotFound 消息不存在或已被硬删除
	ErrRecordNotFound = NewCodeError(RecordNotFoundError, "record not found")
	// ErrStorage 持久层不可用，对触发请求是致命的
	ErrStorage = NewCodeError(StorageError, "storage unavailable")
)
