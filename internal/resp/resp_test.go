package resp

import "testing"

func TestDecodeSimpleString(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("+OK\r\n"))
	v, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", v, ok, err)
	}
	if v.Kind != SimpleString || v.Str != "OK" {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeArrayOfBulkStrings(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("*2\r\n$4\r\nECHO\r\n$2\r\nhi\r\n"))
	v, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", v, ok, err)
	}
	args, ok := v.StringArray()
	if !ok {
		t.Fatalf("expected string array, got %+v", v)
	}
	if len(args) != 2 || args[0] != "ECHO" || args[1] != "hi" {
		t.Fatalf("got %v", args)
	}
}

func TestDecodeSplitAcrossFeeds(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("*2\r\n$3\r\nSET"))
	if _, ok, err := d.Next(); ok || err != nil {
		t.Fatalf("expected incomplete, got ok=%v err=%v", ok, err)
	}
	d.Feed([]byte("\r\n$1\r\na\r\n"))
	v, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", v, ok, err)
	}
	args, _ := v.StringArray()
	if len(args) != 2 || args[0] != "SET" || args[1] != "a" {
		t.Fatalf("got %v", args)
	}
}

func TestDecodePipelinedCommands(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("+PING\r\n+PONG\r\n"))
	var got []string
	for {
		v, ok, err := d.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, v.Str)
	}
	if len(got) != 2 || got[0] != "PING" || got[1] != "PONG" {
		t.Fatalf("got %v", got)
	}
}

func TestDecodeNullBulkString(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("$-1\r\n"))
	v, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("Next() = %v, %v, %v", v, ok, err)
	}
	if v.Kind != BulkString || !v.Null {
		t.Fatalf("got %+v", v)
	}
}

func TestDecodeMalformed(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("!nope\r\n"))
	if _, _, err := d.Next(); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	d := NewDecoder()
	d.Feed(EncodeBulkString("hello"))
	v, ok, err := d.Next()
	if err != nil || !ok || v.Str != "hello" {
		t.Fatalf("got %+v ok=%v err=%v", v, ok, err)
	}

	d.Feed(EncodeNullBulkString())
	v, ok, err = d.Next()
	if err != nil || !ok || !v.Null {
		t.Fatalf("got %+v ok=%v err=%v", v, ok, err)
	}

	d.Feed(EncodeArray(EncodeInteger(1), EncodeInteger(2)))
	v, ok, err = d.Next()
	if err != nil || !ok || len(v.Items) != 2 || v.Items[0].Int != 1 {
		t.Fatalf("got %+v ok=%v err=%v", v, ok, err)
	}
}
