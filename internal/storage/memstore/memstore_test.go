package memstore

import (
	"testing"

	"github.com/BearBump/zapshift/internal/storage/storagetest"
)

func TestMemStore(t *testing.T) {
	storagetest.Run(t, New())
}
