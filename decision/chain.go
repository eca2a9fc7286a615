package decision

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const genesisHash = ""

func computeHash(r *Record) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%t|%s|%s",
		r.SeqNo, r.InvariantID, r.Phase, r.Result, r.Action, r.PrevHash)
	fmt.Fprintf(h, "|%s|%s|%d", r.Reason, r.Actor, r.CreatedAt.UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}

func sign(key []byte, hash string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(hash))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyLink(key []byte, r *Record) bool {
	wantHash := computeHash(r)
	if !hmac.Equal([]byte(wantHash), []byte(r.Hash)) {
		return false
	}
	wantSig := sign(key, r.Hash)
	return hmac.Equal([]byte(wantSig), []byte(r.Signature))
}
