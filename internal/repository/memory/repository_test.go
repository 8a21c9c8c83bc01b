package memory

import (
	"testing"

	"github.com/mamadbah2/stationledger/internal/repository"
	"github.com/mamadbah2/stationledger/internal/repository/repositorytest"
)

func TestRepository(t *testing.T) {
	repositorytest.RunRecordStoreSuite(t, func(t *testing.T) repository.RecordStore {
		return NewRepository()
	})
}
