package messaging

import "testing"

func TestSignEmptySecretYieldsNoSignature(t *testing.T) {
	c := &Core{}
	if got := c.sign("m1", "agent-0", "hello"); got != "" {
		t.Fatalf("expected no signature with empty secret, got %q", got)
	}
}

func TestVerifySignatureRoundTrips(t *testing.T) {
	c := &Core{secret: "shared-secret"}
	msg := Message{MsgID: "m1", Sender: "agent-0", Content: "hello"}
	msg.Signature = c.sign(msg.MsgID, msg.Sender, msg.Content)

	if !VerifySignature(msg, "shared-secret") {
		t.Fatalf("expected signature to verify with correct secret")
	}
	if VerifySignature(msg, "wrong-secret") {
		t.Fatalf("expected signature to fail with wrong secret")
	}
}

func TestVerifySignatureUnsignedAlwaysPasses(t *testing.T) {
	msg := Message{MsgID: "m1", Sender: "agent-0", Content: "hello"}
	if !VerifySignature(msg, "anything") {
		t.Fatalf("expected unsigned message to verify trivially")
	}
}
