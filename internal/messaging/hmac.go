package messaging

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SetSecret configures the local shared secret used to HMAC-sign every
// message this Core sends, per spec §1's non-goal carve-out: "a local
// shared secret is supported for message HMAC but key distribution is out
// of scope". An empty secret (the default) disables signing entirely —
// Signature is left blank and VerifySignature always reports ok.
func (c *Core) SetSecret(secret string) {
	c.secret = secret
}

// sign computes the hex-encoded HMAC-SHA256 of msgID+sender+content under
// the configured secret. Returns "" if no secret is configured.
func (c *Core) sign(msgID, sender, content string) string {
	if c.secret == "" {
		return ""
	}
	return computeHMAC(c.secret, msgID, sender, content)
}

func computeHMAC(secret, msgID, sender, content string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msgID))
	mac.Write([]byte(sender))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether msg's Signature matches what sign would
// compute for it under secret. A message signed with no secret configured
// (Signature == "") always verifies, since signing was never enabled for
// it.
func VerifySignature(msg Message, secret string) bool {
	if msg.Signature == "" {
		return true
	}
	expected := computeHMAC(secret, msg.MsgID, msg.Sender, msg.Content)
	return hmac.Equal([]byte(expected), []byte(msg.Signature))
}
