package persistence

import (
	"errors"

	"github.com/devicecenter/backend/internal/domain/shared"
	"github.com/devicecenter/backend/internal/infrastructure/persistence/uow"
	"gorm.io/gorm"
)

// track resolves a freshly loaded row against the identity map of unit. The
// tracked instance wins when the row was already loaded in this unit of work.
func track[T any](unit *uow.UnitOfWork, loaded *T) (*T, error) {
	if tracked, ok := unit.Tracked(loaded); ok {
		if t, ok := tracked.(*T); ok {
			return t, nil
		}
	}
	if err := unit.Attach(loaded); err != nil {
		return nil, err
	}
	return loaded, nil
}

// trackAll resolves every loaded row against the identity map and returns
// the instances the unit of work tracks.
func trackAll[T any](unit *uow.UnitOfWork, rows []T) ([]*T, error) {
	tracked := make([]*T, 0, len(rows))
	for i := range rows {
		t, err := track(unit, &rows[i])
		if err != nil {
			return nil, err
		}
		tracked = append(tracked, t)
	}
	return tracked, nil
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}
