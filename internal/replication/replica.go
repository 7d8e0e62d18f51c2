package replication

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grevgeny/toy-redis-server/internal/command"
	"github.com/grevgeny/toy-redis-server/internal/rdb"
	"github.com/grevgeny/toy-redis-server/internal/resp"
)

// reconnectBackoff matches the source's handle_master_disconnect delay.
const reconnectBackoff = 5 * time.Second

// Replica connects outbound to a primary, performs the handshake, loads the
// bootstrap snapshot, and applies the replicated command stream.
type Replica struct {
	masterHost string
	masterPort int
	listenPort int

	dispatcher *command.Dispatcher
	log        *logrus.Logger

	offset int64
}

// NewReplica builds a Replica that will connect to host:port, announcing
// listenPort as this process's own listening port during the handshake.
func NewReplica(host string, port int, listenPort int, dispatcher *command.Dispatcher, log *logrus.Logger) *Replica {
	return &Replica{
		masterHost: host,
		masterPort: port,
		listenPort: listenPort,
		dispatcher: dispatcher,
		log:        log,
		offset:     -1, // unset until the handshake completes, per the source's initial sentinel
	}
}

// Run connects and serves the replication stream until stop is closed,
// auto-reconnecting on disconnect.
func (r *Replica) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := r.connectAndServe(stop); err != nil {
			r.log.WithField("component", "replication").WithError(err).Warn("replication stream disconnected")
		}

		select {
		case <-stop:
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

func (r *Replica) connectAndServe(stop <-chan struct{}) error {
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", r.masterHost, r.masterPort))
	if err != nil {
		return err
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	if err := r.handshake(conn, reader); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	r.offset = 0
	return r.streamLoop(conn, reader, stop)
}

func (r *Replica) handshake(conn net.Conn, reader *bufio.Reader) error {
	if err := r.roundTrip(conn, reader, []string{"PING"}, "PONG"); err != nil {
		return err
	}
	if err := r.roundTrip(conn, reader, []string{"REPLCONF", "listening-port", strconv.Itoa(r.listenPort)}, "OK"); err != nil {
		return err
	}
	if err := r.roundTrip(conn, reader, []string{"REPLCONF", "capa", "psync2"}, "OK"); err != nil {
		return err
	}

	if _, err := conn.Write(resp.EncodeBulkStringArray([]string{"PSYNC", "?", "-1"})); err != nil {
		return err
	}
	line, err := readLine(reader)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(line, "+FULLRESYNC") {
		return fmt.Errorf("unexpected PSYNC reply: %q", line)
	}

	bulkHeader, err := readLine(reader)
	if err != nil {
		return err
	}
	if len(bulkHeader) == 0 || bulkHeader[0] != '$' {
		return fmt.Errorf("unexpected RDB bulk header: %q", bulkHeader)
	}
	n, err := strconv.Atoi(bulkHeader[1:])
	if err != nil {
		return fmt.Errorf("unexpected RDB bulk length: %q", bulkHeader)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return err
	}

	snap, err := rdb.Load(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("loading bootstrap snapshot: %w", err)
	}
	for _, entry := range snap.Strings {
		r.dispatcher.Store.LoadString(entry.Key, entry.Value, entry.ExpireAt)
	}
	return nil
}

func (r *Replica) roundTrip(conn net.Conn, reader *bufio.Reader, args []string, expect string) error {
	if _, err := conn.Write(resp.EncodeBulkStringArray(args)); err != nil {
		return err
	}
	line, err := readLine(reader)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(strings.TrimPrefix(line, "+"), expect) {
		return fmt.Errorf("expected +%s, got %q", expect, line)
	}
	return nil
}

// readLine reads one CRLF-terminated line, trimming the terminator.
func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *Replica) streamLoop(conn net.Conn, reader *bufio.Reader, stop <-chan struct{}) error {
	dec := resp.NewDecoder()
	buf := make([]byte, 4096)

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		for {
			v, ok, err := dec.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if err := r.applyFrame(conn, v); err != nil {
				r.log.WithField("component", "replication").WithError(err).Warn("failed to apply replicated command")
			}
		}

		conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, err := reader.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		dec.Feed(buf[:n])
	}
}

func (r *Replica) applyFrame(conn net.Conn, v resp.Value) error {
	args, ok := v.StringArray()
	if !ok {
		return fmt.Errorf("unexpected replication frame shape")
	}
	frameLen := len(resp.EncodeBulkStringArray(args))

	if len(args) >= 2 && strings.EqualFold(args[0], "replconf") && strings.EqualFold(args[1], "getack") {
		ackOffset := r.offset
		r.offset += int64(frameLen)
		reply := resp.EncodeBulkStringArray([]string{"REPLCONF", "ACK", strconv.FormatInt(ackOffset, 10)})
		_, err := conn.Write(reply)
		return err
	}

	if _, _, err := r.dispatcher.Dispatch(io.Discard, args); err != nil {
		return err
	}
	r.offset += int64(frameLen)
	return nil
}
