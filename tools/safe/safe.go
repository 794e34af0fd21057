package safe

import (
	"ChatLink/logger"
)

// Go starts a goroutine that recovers from panics so a misbehaving side
// effect (presence writes, receipt delivery) can never take the gateway
// down with it.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
