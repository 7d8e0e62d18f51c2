// Package command implements the table-driven dispatcher: one entry point
// that validates arity, mutates or queries storage, and formats the RESP
// reply for every supported command.
package command

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/grevgeny/toy-redis-server/internal/config"
	"github.com/grevgeny/toy-redis-server/internal/resp"
	"github.com/grevgeny/toy-redis-server/internal/store"
)

// Replication is the subset of the replication subsystem the dispatcher
// needs. Both a primary and a replica implement it; most methods are no-ops
// (returning an error) on a replica, since PSYNC/REPLCONF/WAIT are a
// primary's protocol surface.
type Replication interface {
	// Role returns "master" or "slave", for INFO replication.
	Role() string
	// InfoLines returns the role-specific trailer lines for INFO
	// replication, e.g. master_replid/master_repl_offset on a primary and
	// nothing on a replica.
	InfoLines() []string
	// Propagate enqueues a write command for fanout to registered
	// replicas and advances the replication offset. A no-op on a replica.
	Propagate(args []string)
	// RegisterReplica handles PSYNC ? -1: writes +FULLRESYNC and the
	// empty RDB bulk directly to w, and records w in the replica
	// registry. Returns an error on a replica.
	RegisterReplica(w io.Writer) error
	// HandleReplConf processes a REPLCONF subcommand from a connected
	// replica or client, returning the reply bytes to write (nil for
	// none, e.g. an ACK). Returns an error on a replica.
	HandleReplConf(w io.Writer, args []string) ([]byte, error)
	// Wait blocks until numReplicas have acknowledged the current offset
	// or timeoutMs elapses, returning the count observed.
	Wait(numReplicas int, timeoutMs int) int
}

// Dispatcher holds the dependencies every command handler needs and owns
// the command table.
type Dispatcher struct {
	Store *store.Store
	Cfg   config.Config
	Repl  Replication
	Log   *logrus.Logger

	table map[string]handlerFunc
}

// handlerFunc implements one command. w is the raw connection writer,
// needed only by PSYNC/REPLCONF. isWrite tells the caller whether this
// command must be propagated to replicas on success.
type handlerFunc func(d *Dispatcher, w io.Writer, args []string) (reply []byte, isWrite bool, err error)

// New builds a Dispatcher with its command table populated.
func New(st *store.Store, cfg config.Config, repl Replication, log *logrus.Logger) *Dispatcher {
	d := &Dispatcher{Store: st, Cfg: cfg, Repl: repl, Log: log}
	d.table = map[string]handlerFunc{
		"ping":     cmdPing,
		"echo":     cmdEcho,
		"set":      cmdSet,
		"get":      cmdGet,
		"del":      cmdDel,
		"keys":     cmdKeys,
		"type":     cmdType,
		"config":   cmdConfig,
		"info":     cmdInfo,
		"replconf": cmdReplConf,
		"psync":    cmdPsync,
		"wait":     cmdWait,
		"xadd":     cmdXAdd,
		"xrange":   cmdXRange,
	}
	return d
}

// Dispatch decodes args[0] as the command name and runs the matching
// handler. w is the connection's writer, passed through for commands that
// need direct access to it (PSYNC, REPLCONF).
func (d *Dispatcher) Dispatch(w io.Writer, args []string) (reply []byte, isWrite bool, err error) {
	if len(args) == 0 {
		return nil, false, errUnknownCommand("")
	}
	name := strings.ToLower(args[0])
	fn, ok := d.table[name]
	if !ok {
		return nil, false, errUnknownCommand(args[0])
	}
	reply, isWrite, err = fn(d, w, args)
	if isWrite && err == nil {
		d.Repl.Propagate(args)
	}
	return reply, isWrite, err
}

func simple(s string) []byte { return resp.EncodeSimpleString(s) }
func bulk(s string) []byte   { return resp.EncodeBulkString(s) }
func integer(n int64) []byte { return resp.EncodeInteger(n) }
