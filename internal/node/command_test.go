package node

import "testing"

func TestLogCommand(t *testing.T) {
	c := LogCommand("hello")
	if c.Kind != CommandLog || c.Message != "hello" {
		t.Fatalf("unexpected command: %+v", c)
	}
}

func TestSendDMCommand(t *testing.T) {
	c := SendDMCommand("peer-a", "secret")
	if c.Kind != CommandSendDM || c.To != "peer-a" || c.Content != "secret" {
		t.Fatalf("unexpected command: %+v", c)
	}
}
