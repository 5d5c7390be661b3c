package provider

import (
	"bytes"
	"strings"
)

const nzbSniffLimit = 4096

// LooksLikeNZB reports whether data is an NZB document rather than, for
// example, a torrent file served under an NZB link.
func LooksLikeNZB(data []byte) bool {
	trimmed := bytes.TrimLeft(data, "\ufeff \t\r\n")
	if len(trimmed) == 0 {
		return false
	}
	if bytes.HasPrefix(trimmed, []byte("d8:announce")) || bytes.HasPrefix(trimmed, []byte("d4:info")) {
		return false
	}
	head := trimmed
	if len(head) > nzbSniffLimit {
		head = head[:nzbSniffLimit]
	}
	return strings.Contains(strings.ToLower(string(head)), "<nzb")
}
