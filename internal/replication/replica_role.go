package replication

import (
	"fmt"
	"io"
)

// ReplicaRole is the command.Replication implementation used by a process
// running as a replica: it reports role:slave, carries no replid/offset
// lines (matching the source's asymmetric INFO body), and rejects the
// primary-only operations since a replica doesn't register sub-replicas in
// this implementation's scope.
type ReplicaRole struct{}

func (ReplicaRole) Role() string        { return "slave" }
func (ReplicaRole) InfoLines() []string { return nil }
func (ReplicaRole) Propagate(args []string) {}

func (ReplicaRole) RegisterReplica(w io.Writer) error {
	return fmt.Errorf("ERR PSYNC is not supported by a replica")
}

func (ReplicaRole) HandleReplConf(w io.Writer, args []string) ([]byte, error) {
	return nil, fmt.Errorf("ERR REPLCONF is not supported by a replica")
}

func (ReplicaRole) Wait(numReplicas int, timeoutMs int) int {
	return 0
}
