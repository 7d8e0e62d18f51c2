// Package rdb loads the subset of the RDB snapshot format this server needs
// to bootstrap a keyspace: the REDIS magic and version header, auxiliary
// fields, SELECTDB/RESIZEDB hints, EXPIRETIME/EXPIRETIME_MS markers, and the
// STRING value type (including its length-encoded and LZF-compressed
// forms). Anything else is rejected — the snapshot is not applied partially.
package rdb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	lzf "github.com/zhuyie/golzf"

	"github.com/grevgeny/toy-redis-server/internal/rdb/crc64"
)

const (
	opCodeAux          byte = 250
	opCodeResizeDB     byte = 251
	opCodeExpireTimeMs byte = 252
	opCodeExpireTimeS  byte = 253
	opCodeSelectDB     byte = 254
	opCodeEOF          byte = 255
)

const (
	typeString byte = 0
)

const (
	specialInt8          = 0
	specialInt16         = 1
	specialInt32         = 2
	specialCompressedStr = 3
)

// ErrNotRDB is returned when the input lacks the REDIS magic header.
var ErrNotRDB = errors.New("rdb: not a Redis RDB file")

// StringEntry is one loaded string key, with its optional absolute expiry.
type StringEntry struct {
	Key      string
	Value    string
	ExpireAt *time.Time
}

// Snapshot is the result of loading an RDB file: every string entry found in
// database 0. Other databases are not addressable by this server (per the
// single-database scope) and are skipped if selected.
type Snapshot struct {
	Strings []StringEntry
}

// LoadFile loads path if it exists, returning an empty Snapshot (not an
// error) when dir/filename weren't both configured or the file is absent —
// matching the "otherwise start with an empty keyspace" startup contract.
func LoadFile(dir, filename string) (*Snapshot, error) {
	if dir == "" || filename == "" {
		return &Snapshot{}, nil
	}
	path := dir + string(os.PathSeparator) + filename
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Snapshot{}, nil
		}
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load parses RDB bytes from r into a Snapshot.
func Load(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, 5)
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, err
	}
	if string(magic) != "REDIS" {
		return nil, ErrNotRDB
	}

	version := make([]byte, 4)
	if _, err := io.ReadFull(br, version); err != nil {
		return nil, err
	}

	if err := skipAuxFields(br); err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	selected := true // database 0 is implicit until a SELECTDB says otherwise
	for {
		opCode, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return snap, nil
			}
			return nil, err
		}

		switch opCode {
		case opCodeEOF:
			return snap, nil

		case opCodeSelectDB:
			dbID, special, err := readLength(br)
			if err != nil {
				return nil, err
			}
			if special {
				return nil, errors.New("rdb: invalid SELECTDB encoding")
			}
			selected = dbID == 0

		case opCodeResizeDB:
			if _, _, err := readLength(br); err != nil {
				return nil, err
			}
			if _, _, err := readLength(br); err != nil {
				return nil, err
			}

		case opCodeExpireTimeS:
			buf := make([]byte, 4)
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, err
			}
			expireAt := time.Unix(int64(binary.LittleEndian.Uint32(buf)), 0)
			if err := loadKeyValue(br, snap, &expireAt, selected); err != nil {
				return nil, err
			}

		case opCodeExpireTimeMs:
			buf := make([]byte, 8)
			if _, err := io.ReadFull(br, buf); err != nil {
				return nil, err
			}
			expireAt := time.UnixMilli(int64(binary.LittleEndian.Uint64(buf)))
			if err := loadKeyValue(br, snap, &expireAt, selected); err != nil {
				return nil, err
			}

		default:
			if err := br.UnreadByte(); err != nil {
				return nil, err
			}
			if err := loadKeyValue(br, snap, nil, selected); err != nil {
				return nil, err
			}
		}
	}
}

func skipAuxFields(r *bufio.Reader) error {
	for {
		opCode, err := r.ReadByte()
		if err != nil {
			return err
		}
		if opCode != opCodeAux {
			return r.UnreadByte()
		}
		if _, err := readString(r); err != nil {
			return err
		}
		if _, err := readString(r); err != nil {
			return err
		}
	}
}

func loadKeyValue(r *bufio.Reader, snap *Snapshot, expireAt *time.Time, selected bool) error {
	valueType, err := r.ReadByte()
	if err != nil {
		return err
	}

	key, err := readString(r)
	if err != nil {
		return err
	}

	switch valueType {
	case typeString:
		value, err := readString(r)
		if err != nil {
			return err
		}
		if selected {
			snap.Strings = append(snap.Strings, StringEntry{Key: key, Value: value, ExpireAt: expireAt})
		}
		return nil
	default:
		return fmt.Errorf("rdb: unsupported value type encoding %d", valueType)
	}
}

// readString reads a length-encoded string, resolving the special integer
// and LZF-compressed encodings into their plain decimal/decoded form.
func readString(r *bufio.Reader) (string, error) {
	length, special, err := readLength(r)
	if err != nil {
		return "", err
	}
	if !special {
		buf := make([]byte, length)
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		return string(buf), nil
	}

	switch length {
	case specialInt8:
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(int8(b))), nil

	case specialInt16:
		buf := make([]byte, 2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		return strconv.Itoa(int(int16(binary.LittleEndian.Uint16(buf)))), nil

	case specialInt32:
		buf := make([]byte, 4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		return strconv.Itoa(int(int32(binary.LittleEndian.Uint32(buf)))), nil

	case specialCompressedStr:
		return readCompressedString(r)

	default:
		return "", fmt.Errorf("rdb: unsupported special string format %d", length)
	}
}

func readCompressedString(r *bufio.Reader) (string, error) {
	compressedLen, special, err := readLength(r)
	if special || err != nil {
		return "", errors.New("rdb: invalid compressed string encoding")
	}
	uncompressedLen, special, err := readLength(r)
	if special || err != nil {
		return "", errors.New("rdb: invalid compressed string encoding")
	}

	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return "", err
	}

	out := make([]byte, uncompressedLen)
	n, err := lzf.Decompress(compressed, out)
	if err != nil {
		return "", fmt.Errorf("rdb: lzf decompress: %w", err)
	}
	return string(out[:n]), nil
}

// readLength parses Redis' length encoding. The top two bits of the first
// byte select the scheme: 6-bit inline, 14-bit (6 bits + next byte), 32-bit
// (four following bytes), or a "special format" whose meaning is the low 6
// bits of the first byte (returned with special=true for the caller to
// interpret, e.g. as one of the specialInt*/specialCompressedStr codes).
func readLength(r *bufio.Reader) (int, bool, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, false, err
	}

	switch first >> 6 {
	case 0:
		return int(first & 0x3f), false, nil

	case 1:
		next, err := r.ReadByte()
		if err != nil {
			return 0, false, err
		}
		length := int(first&0x3f)<<8 | int(next)
		return length, false, nil

	case 2:
		buf := make([]byte, 4)
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, false, err
		}
		return int(binary.BigEndian.Uint32(buf)), false, nil

	default: // 3: special format
		return int(first & 0x3f), true, nil
	}
}

// VerifyChecksum re-derives the CRC-64/Jones checksum over the body of an
// RDB file (everything but the trailing 8-byte checksum) and compares it to
// the trailing value. A trailing checksum of all zeroes means the producer
// didn't emit one, which is not an error.
func VerifyChecksum(data []byte) error {
	if len(data) < 8 {
		return errors.New("rdb: file too short for a checksum trailer")
	}
	body, trailer := data[:len(data)-8], data[len(data)-8:]
	reported := binary.LittleEndian.Uint64(trailer)
	if reported == 0 {
		return nil
	}
	h := crc64.New()
	h.Write(body)
	if h.Sum64() != reported {
		return errors.New("rdb: checksum mismatch")
	}
	return nil
}
