package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("bulk_fetch", "200")
		IncStoreWrite("booking", "ok")
		IncDispatch("user", "failed")
		ObserveLockWait(3 * time.Millisecond)
	})
}
