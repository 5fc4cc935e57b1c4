package uow

// SaveState is the progress of a single SaveChanges call
type SaveState int

const (
	SavePending SaveState = iota
	SaveIntercepted
	SaveEventsCollected
	SaveCommitted
	SaveDispatched
	SaveFailed
)

func (s SaveState) String() string {
	switch s {
	case SavePending:
		return "pending"
	case SaveIntercepted:
		return "intercepted"
	case SaveEventsCollected:
		return "events_collected"
	case SaveCommitted:
		return "committed"
	case SaveDispatched:
		return "dispatched"
	case SaveFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether s ends a save
func (s SaveState) Terminal() bool {
	return s == SaveDispatched || s == SaveFailed
}

// EntityState is the tracking state of one entity within a unit of work
type EntityState int

const (
	EntityDetached EntityState = iota
	EntityUnchanged
	EntityAdded
	EntityModified
	EntityDeleted
)

func (s EntityState) String() string {
	switch s {
	case EntityDetached:
		return "detached"
	case EntityUnchanged:
		return "unchanged"
	case EntityAdded:
		return "added"
	case EntityModified:
		return "modified"
	case EntityDeleted:
		return "deleted"
	}
	return "unknown"
}
