package route

import "encoding/binary"

// accountIdPrefixLen is the width of the resumeAccountId/boundAccountId
// prefix the client edge and Stage use to carry an accountId across a
// boundary the wire format itself has no field for (spec sec 4.9.2 has
// no generic accountId on the client frame; 4.8.2/4.8.3 need one to
// distinguish a first join from a reconnect before OnAuthenticate has
// run). See DESIGN.md's Open Question entry on reconnect detection.
const accountIdPrefixLen = 8

// EncodeAccountId renders id as the big-endian prefix this convention
// uses. A fresh join encodes 0.
func EncodeAccountId(id int64) []byte {
	b := make([]byte, accountIdPrefixLen)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

// SplitResumeAccountId reads the leading accountId prefix off an
// authenticate payload, returning the bare auth payload with the prefix
// stripped. A payload shorter than the prefix is treated as a fresh
// join (resumeAccountId 0, authPayload unchanged) rather than an error,
// so a client that never adopts the convention still joins normally.
func SplitResumeAccountId(payload Payload) (resumeAccountId int64, authPayload Payload) {
	b := payload.Bytes()
	if len(b) < accountIdPrefixLen {
		return 0, payload
	}
	resumeAccountId = int64(binary.BigEndian.Uint64(b[:accountIdPrefixLen]))
	return resumeAccountId, NewPayload(b[accountIdPrefixLen:])
}

// DecodeAccountId reverses EncodeAccountId, used by the client edge to
// learn the accountId a successful JoinStageRes bound sid to.
func DecodeAccountId(b []byte) (int64, bool) {
	if len(b) < accountIdPrefixLen {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(b[:accountIdPrefixLen])), true
}
