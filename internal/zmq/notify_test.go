package zmq

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/cryptonote-tools/lws-go/internal/lwserr"
)

func serveOneSubscriber(t *testing.T, ln net.Listener, topics []string) {
	t.Helper()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		var peer [64]byte
		if _, err := ioReadFull(conn, peer[:11]); err != nil {
			return
		}
		g := greetingV3Null()
		if _, err := conn.Write(g[:11]); err != nil {
			return
		}
		if _, err := ioReadFull(conn, peer[11:]); err != nil {
			return
		}
		if _, err := conn.Write(g[11:]); err != nil {
			return
		}

		r := bufio.NewReader(conn)
		// Read client READY command.
		if _, _, _, err := readFrame(r); err != nil {
			return
		}
		// Send our own READY.
		meta, err := encodeREADYMetadata("PUB")
		if err != nil {
			return
		}
		ready := append([]byte{byte(len("READY"))}, []byte("READY")...)
		ready = append(ready, meta...)
		if err := writeFrame(conn, true, false, ready); err != nil {
			return
		}
		// Read the subscribe frame.
		if _, _, _, err := readFrame(r); err != nil {
			return
		}

		for _, topic := range topics {
			if err := writeFrame(conn, false, false, []byte(topic)); err != nil {
				return
			}
		}
		<-make(chan struct{})
	}()
}

func TestNotifyDecodesKnownAndUnknownTopics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serveOneSubscriber(t, ln, []string{"abort-scan", "reorg", "something-else"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := make(chan *lwserr.Error, 8)
	cfg := NotifyConfig{Endpoint: ln.Addr().String(), ReadTimeout: time.Second, WriteTimeout: time.Second}

	done := make(chan error, 1)
	go func() { done <- Notify(ctx, cfg, out, nil) }()

	var got []lwserr.Code
	for i := 0; i < 3; i++ {
		select {
		case sig := <-out:
			got = append(got, lwserr.CodeOf(sig))
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for signal %d", i)
		}
	}
	cancel()
	<-done

	want := []lwserr.Code{lwserr.SignalAbortScan, lwserr.BlockchainReorg, lwserr.SignalUnknown}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("signal %d = %v, want %v", i, got[i], w)
		}
	}
}
