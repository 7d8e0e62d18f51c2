package command

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/grevgeny/toy-redis-server/internal/resp"
	"github.com/grevgeny/toy-redis-server/internal/stream"
)

func cmdPing(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	return simple("PONG"), false, nil
}

func cmdEcho(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) != 2 {
		return nil, false, errWrongArity("echo")
	}
	return bulk(args[1]), false, nil
}

func cmdSet(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) != 3 && len(args) != 5 {
		return nil, false, errWrongArity("set")
	}
	key, value := args[1], args[2]

	var expireAt *time.Time
	if len(args) == 5 {
		if !strings.EqualFold(args[3], "px") {
			return nil, false, errUnknownSubcommand()
		}
		ms, err := strconv.ParseInt(args[4], 10, 64)
		if err != nil {
			return nil, false, newErrorf("ERR value is not an integer or out of range")
		}
		t := time.Now().Add(time.Duration(ms) * time.Millisecond)
		expireAt = &t
	}

	d.Store.Set(key, value, expireAt)
	return simple("OK"), true, nil
}

func cmdGet(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) != 2 {
		return nil, false, errWrongArity("get")
	}
	value, ok := d.Store.Get(args[1])
	if !ok {
		return resp.EncodeNullBulkString(), false, nil
	}
	return bulk(value), false, nil
}

func cmdDel(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) < 2 {
		return nil, false, errWrongArity("del")
	}
	var n int64
	for _, key := range args[1:] {
		if d.Store.Delete(key) {
			n++
		}
	}
	isWrite := n > 0
	return integer(n), isWrite, nil
}

func cmdKeys(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) != 2 {
		return nil, false, errWrongArity("keys")
	}
	if args[1] != "*" {
		return nil, false, errUnknownSubcommand()
	}
	return resp.EncodeBulkStringArray(d.Store.Keys()), false, nil
}

func cmdType(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) != 2 {
		return nil, false, errWrongArity("type")
	}
	return simple(d.Store.Type(args[1])), false, nil
}

func cmdConfig(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) != 3 || !strings.EqualFold(args[1], "get") {
		return nil, false, errUnknownSubcommand()
	}
	var value string
	switch strings.ToLower(args[2]) {
	case "dir":
		value = d.Cfg.Dir
	case "dbfilename":
		value = d.Cfg.DBFilename
	default:
		return nil, false, errUnknownSubcommand()
	}
	return resp.EncodeBulkStringArray([]string{args[2], value}), false, nil
}

func cmdInfo(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) != 2 || !strings.EqualFold(args[1], "replication") {
		return nil, false, errUnknownSubcommand()
	}
	lines := append([]string{"role:" + d.Repl.Role()}, d.Repl.InfoLines()...)
	return bulk(strings.Join(lines, "\n")), false, nil
}

func cmdReplConf(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) < 2 {
		return nil, false, errWrongArity("replconf")
	}
	reply, err := d.Repl.HandleReplConf(w, args)
	if err != nil {
		return nil, false, err
	}
	return reply, false, nil
}

func cmdPsync(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) != 3 || args[1] != "?" || args[2] != "-1" {
		return nil, false, newErrorf("ERR PSYNC is only supported as 'PSYNC ? -1'")
	}
	if err := d.Repl.RegisterReplica(w); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}

func cmdWait(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) != 3 {
		return nil, false, errWrongArity("wait")
	}
	numReplicas, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, false, newErrorf("ERR value is not an integer or out of range")
	}
	timeoutMs, err := strconv.Atoi(args[2])
	if err != nil {
		return nil, false, newErrorf("ERR value is not an integer or out of range")
	}
	n := d.Repl.Wait(numReplicas, timeoutMs)
	return integer(int64(n)), false, nil
}

func cmdXAdd(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) < 5 || len(args)%2 != 1 {
		return nil, false, errWrongArity("xadd")
	}
	key, id := args[1], args[2]
	rest := args[3:]

	fields := make([]stream.FieldValue, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		fields = append(fields, stream.FieldValue{Field: rest[i], Value: rest[i+1]})
	}

	resolved, err := d.Store.XAdd(key, id, fields)
	if err != nil {
		return nil, false, err
	}
	return bulk(resolved), true, nil
}

func cmdXRange(d *Dispatcher, w io.Writer, args []string) ([]byte, bool, error) {
	if len(args) != 4 {
		return nil, false, errWrongArity("xrange")
	}
	entries, err := d.Store.XRange(args[1], args[2], args[3])
	if err != nil {
		return nil, false, err
	}

	encoded := make([][]byte, 0, len(entries))
	for _, e := range entries {
		fieldValues := make([]string, 0, len(e.Fields)*2)
		for _, fv := range e.Fields {
			fieldValues = append(fieldValues, fv.Field, fv.Value)
		}
		entry := resp.EncodeArray(bulk(e.ID.String()), resp.EncodeBulkStringArray(fieldValues))
		encoded = append(encoded, entry)
	}
	out := resp.EncodeArrayHeader(len(encoded))
	for _, e := range encoded {
		out = append(out, e...)
	}
	return out, false, nil
}
