package memory_test

import (
	"testing"

	"github.com/jcmexdev/order-desk/internal/docstore"
	"github.com/jcmexdev/order-desk/internal/docstore/memory"
	"github.com/jcmexdev/order-desk/internal/docstore/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		return memory.New()
	})
}
