package cryptocore

import "encoding/binary"

// SignedBytes builds the exact byte sequence spec.md §4.1 signs and
// verifies: content_utf8 || LE64(timestamp) || LE64(sequence_number). Both
// ClientEngine's outbound signing step and its inbound verification step
// must build this identically, so it lives here rather than being
// duplicated at each call site.
func SignedBytes(content string, timestamp int64, sequenceNumber uint64) []byte {
	buf := make([]byte, 0, len(content)+16)
	buf = append(buf, content...)

	var tsBuf, seqBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(timestamp))
	binary.LittleEndian.PutUint64(seqBuf[:], sequenceNumber)

	buf = append(buf, tsBuf[:]...)
	buf = append(buf, seqBuf[:]...)
	return buf
}
