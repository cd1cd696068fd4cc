package safe

import (
	"CMProject/logger"
)

// SafeGo starts a new goroutine that recovers from panic,
// so that panics in fire-and-forget side effects don't crash the gateway.
func SafeGo(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[SafeGo] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
