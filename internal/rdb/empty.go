package rdb

import "encoding/base64"

// emptyRDBBase64 is a legitimate Redis snapshot of an empty database,
// reused verbatim as the fixed bootstrap payload for PSYNC FULLRESYNC.
const emptyRDBBase64 = "UkVESVMwMDEx+glyZWRpcy12ZXIFNy4yLjD6CnJlZGlzLWJpdHPAQPoFY3RpbWXCbQi8ZfoIdXNlZC1tZW3CsMQQAPoIYW9mLWJhc2XAAP/wbjv+wP9aog=="

// EmptyRDB returns the decoded 88-byte empty-database snapshot used to
// bootstrap a freshly registered replica.
func EmptyRDB() []byte {
	b, err := base64.StdEncoding.DecodeString(emptyRDBBase64)
	if err != nil {
		panic("rdb: invalid embedded empty snapshot: " + err.Error())
	}
	return b
}
