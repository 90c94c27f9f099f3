package core

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
	"pkt.systems/netbrowser/schema"
)

func newID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "session-unknown"
	}
	return hex.EncodeToString(buf[:])
}

// newTimedID returns a millisecond timestamp with a short random suffix.
func newTimedID(now time.Time) string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + hex.EncodeToString(buf[:])
}

func newDownloadID() schema.DownloadID {
	return schema.DownloadID(uuid.NewString())
}
