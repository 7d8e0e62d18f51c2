// Package replication implements both sides of the primary/replica
// protocol: a Primary that registers replicas via PSYNC, fans write
// commands out to them, and backs WAIT; and a Replica that performs the
// handshake against an upstream primary and applies the replicated stream.
package replication

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grevgeny/toy-redis-server/internal/rdb"
	"github.com/grevgeny/toy-redis-server/internal/resp"
)

// ackPollInterval is how often the primary solicits REPLCONF ACK from every
// replica.
const ackPollInterval = 100 * time.Millisecond

// waitPollInterval is how often WAIT re-checks acked offsets while blocked.
const waitPollInterval = 10 * time.Millisecond

type replicaConn struct {
	w      io.Writer
	acked  int64
	listen int
}

// Primary tracks connected replicas, fans out write commands, and answers
// WAIT. It implements command.Replication.
type Primary struct {
	log *logrus.Logger

	replID string

	mu       sync.Mutex
	offset   int64
	replicas map[io.Writer]*replicaConn
	queue    [][]byte

	signal chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewPrimary creates a Primary with a freshly generated 40-hex-char
// replication id and starts its fanout and ACK-poll background tasks.
func NewPrimary(log *logrus.Logger) *Primary {
	p := &Primary{
		log:      log,
		replID:   generateReplID(),
		replicas: make(map[io.Writer]*replicaConn),
		signal:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	p.wg.Add(2)
	go p.fanoutLoop()
	go p.ackPollLoop()
	return p
}

func generateReplID() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// fixed-but-valid-shape id rather than panic mid-startup.
		return strings.Repeat("0", 40)
	}
	return hex.EncodeToString(buf)
}

// Shutdown stops the background tasks, awaiting both.
func (p *Primary) Shutdown() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Primary) Role() string { return "master" }

func (p *Primary) InfoLines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return []string{
		"master_replid:" + p.replID,
		fmt.Sprintf("master_repl_offset:%d", p.offset),
	}
}

// Propagate encodes args as a RESP command array, advances the replication
// offset by its length, and enqueues it for the fanout task.
func (p *Primary) Propagate(args []string) {
	encoded := resp.EncodeBulkStringArray(args)

	p.mu.Lock()
	p.offset += int64(len(encoded))
	p.queue = append(p.queue, encoded)
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *Primary) fanoutLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case <-p.signal:
			p.drainQueue()
		}
	}
}

func (p *Primary) drainQueue() {
	p.mu.Lock()
	batch := p.queue
	p.queue = nil
	writers := make([]io.Writer, 0, len(p.replicas))
	for w := range p.replicas {
		writers = append(writers, w)
	}
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	for _, w := range writers {
		for _, cmd := range batch {
			if _, err := w.Write(cmd); err != nil {
				p.removeReplica(w)
				break
			}
		}
	}
}

func (p *Primary) removeReplica(w io.Writer) {
	p.mu.Lock()
	delete(p.replicas, w)
	p.mu.Unlock()
	p.log.WithField("component", "replication").Warn("dropping replica after write failure")
}

func (p *Primary) ackPollLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(ackPollInterval)
	defer ticker.Stop()
	getack := resp.EncodeBulkStringArray([]string{"REPLCONF", "GETACK", "*"})
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			writers := make([]io.Writer, 0, len(p.replicas))
			for w := range p.replicas {
				writers = append(writers, w)
			}
			p.mu.Unlock()
			for _, w := range writers {
				if _, err := w.Write(getack); err != nil {
					p.removeReplica(w)
				}
			}
		}
	}
}

// RegisterReplica answers PSYNC ? -1: writes FULLRESYNC and the empty RDB
// bulk directly to w (no trailing CRLF after the RDB bytes) and records w
// with an initial acked offset of 0.
func (p *Primary) RegisterReplica(w io.Writer) error {
	p.mu.Lock()
	offset := p.offset
	p.mu.Unlock()

	header := resp.EncodeSimpleString(fmt.Sprintf("FULLRESYNC %s %d", p.replID, offset))
	if _, err := w.Write(header); err != nil {
		return err
	}

	payload := rdb.EmptyRDB()
	bulkHeader := []byte("$" + strconv.Itoa(len(payload)) + "\r\n")
	if _, err := w.Write(bulkHeader); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}

	p.mu.Lock()
	p.replicas[w] = &replicaConn{w: w, acked: 0}
	p.mu.Unlock()
	return nil
}

// HandleReplConf processes listening-port, capa, and ack subcommands from a
// replica connection.
func (p *Primary) HandleReplConf(w io.Writer, args []string) ([]byte, error) {
	sub := strings.ToLower(args[1])
	switch sub {
	case "listening-port":
		if len(args) != 3 {
			return nil, fmt.Errorf("ERR wrong number of arguments for 'replconf' command")
		}
		port, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("ERR value is not an integer or out of range")
		}
		p.mu.Lock()
		if rc, ok := p.replicas[w]; ok {
			rc.listen = port
		}
		p.mu.Unlock()
		return resp.EncodeSimpleString("OK"), nil

	case "capa":
		return resp.EncodeSimpleString("OK"), nil

	case "ack":
		if len(args) != 3 {
			return nil, fmt.Errorf("ERR wrong number of arguments for 'replconf' command")
		}
		offset, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ERR value is not an integer or out of range")
		}
		p.mu.Lock()
		if rc, ok := p.replicas[w]; ok {
			rc.acked = offset
		}
		p.mu.Unlock()
		return nil, nil

	default:
		return nil, fmt.Errorf("ERR unknown subcommand")
	}
}

// Wait implements the WAIT n timeout_ms barrier: if no writes have been
// issued yet (offset 0), it returns the currently registered replica count
// immediately, matching the source's early-return fast path. Otherwise it
// polls until numReplicas have offset >= the current replication offset or
// timeoutMs elapses, returning the count observed either way. If
// numReplicas exceeds the number of replicas ever registered, WAIT still
// returns whatever count is observed at the deadline — it never blocks
// forever waiting for replicas that don't exist.
func (p *Primary) Wait(numReplicas int, timeoutMs int) int {
	p.mu.Lock()
	targetOffset := p.offset
	count := len(p.replicas)
	p.mu.Unlock()

	if targetOffset == 0 {
		return count
	}

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		p.mu.Lock()
		acked := 0
		for _, rc := range p.replicas {
			if rc.acked >= targetOffset {
				acked++
			}
		}
		p.mu.Unlock()

		if acked >= numReplicas || time.Now().After(deadline) {
			return acked
		}
		time.Sleep(waitPollInterval)
	}
}
