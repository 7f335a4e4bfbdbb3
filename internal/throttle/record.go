package throttle

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

const keyPrefix = "login_attempts_"

// Record is the persisted attempt state for one client address.
type Record struct {
	FailureCount int   `json:"failure_count"`
	LockedUntil  int64 `json:"locked_until"`
}

// Locked reports whether the lockout is still in force at now.
func (r Record) Locked(now time.Time) bool {
	return r.LockedUntil > now.Unix()
}

// MinutesRemaining rounds the remaining lockout up to whole minutes.
func (r Record) MinutesRemaining(now time.Time) int {
	remaining := r.LockedUntil - now.Unix()
	if remaining <= 0 {
		return 0
	}
	return int((remaining + 59) / 60)
}

// Key maps a client address to its store key. An empty address is a valid key,
// so every unidentifiable client shares one bucket.
func Key(clientAddr string) string {
	sum := md5.Sum([]byte(clientAddr))
	return keyPrefix + hex.EncodeToString(sum[:])
}

var errMalformedRecord = errors.New("malformed attempt record")

func decodeRecord(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, err
	}
	if rec.FailureCount < 0 || rec.LockedUntil < 0 {
		return Record{}, errMalformedRecord
	}
	return rec, nil
}

func encodeRecord(rec Record) ([]byte, error) {
	return json.Marshal(rec)
}
