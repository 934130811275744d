package bus

import (
	"fmt"

	"go.uber.org/zap"
)

func zapFields(addr Address, err error) []zap.Field {
	return []zap.Field{
		zap.String("namespace", addr.Namespace),
		zap.String("key", addr.Key),
		zap.Error(err),
	}
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
