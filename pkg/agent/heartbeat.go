package agent

import "context"

// Heartbeat is the role for agents without routing duties yet: every
// wake is a heartbeat-only cycle. Specialist roles will replace this as
// they gain work sources.
type Heartbeat struct{}

func (Heartbeat) CheckForWork(ctx context.Context, rt *Runtime) (bool, error) {
	return false, nil
}

func (Heartbeat) ProcessWork(ctx context.Context, rt *Runtime) error {
	return nil
}
