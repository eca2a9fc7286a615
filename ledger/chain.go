package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// genesisHash is the PrevHash of the first entry in the chain.
const genesisHash = ""

// computeHash derives the content hash of an entry's fields plus its
// predecessor's hash, binding each entry to the full history before it.
func computeHash(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%d|%s|%s|%s",
		e.SeqNo, e.Type, e.AccountID.String(), e.Amount.Amount, e.Amount.Currency,
		e.Reason, e.PrevHash)
	fmt.Fprintf(h, "|%d", e.CreatedAt.UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}

// sign computes an HMAC-SHA256 over the entry's hash, keyed by key. This is
// the signature verified by Verify and by the Decision Ledger's own chain.
func sign(key []byte, hash string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(hash))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyLink reports whether entry's Hash and Signature are both
// consistent with its own fields and the supplied HMAC key.
func verifyLink(key []byte, entry *Entry) bool {
	wantHash := computeHash(entry)
	if !hmac.Equal([]byte(wantHash), []byte(entry.Hash)) {
		return false
	}
	wantSig := sign(key, entry.Hash)
	return hmac.Equal([]byte(wantSig), []byte(entry.Signature))
}
