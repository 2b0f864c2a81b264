package session

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionReceivesCompletedLines(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := NewSession("session:alice", server, Capabilities{ANSI: true}, zap.NewNop())
	s.Start()
	defer s.Close()

	_, err := client.Write([]byte("look\r\n"))
	require.NoError(t, err)

	select {
	case line := <-s.Lines:
		require.Equal(t, "look", line)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for line")
	}
}

func TestSessionSendWritesCRLF(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := NewSession("session:alice", server, Capabilities{}, zap.NewNop())
	s.Start()
	defer s.Close()

	s.Send("hello")

	r := bufio.NewReader(client)
	got, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "hello\r\n", got)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	_, server := net.Pipe()
	s := NewSession("session:alice", server, Capabilities{}, zap.NewNop())
	s.Close()
	s.Close()
	require.True(t, s.IsClosed())
}
