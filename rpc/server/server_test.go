//go:build linux

package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/ValentinKolb/uniauth/lib/store/lstore"
	"github.com/ValentinKolb/uniauth/rpc/client"
	"github.com/ValentinKolb/uniauth/rpc/common"
	"github.com/ValentinKolb/uniauth/rpc/serializer"
	"github.com/ValentinKolb/uniauth/rpc/transport/unix"
)

// startTestServer runs a daemon on a fresh socket until the test ends
func startTestServer(t *testing.T, endpoint string, maxConnections int) {
	t.Helper()

	config := common.ServerConfig{
		Endpoint:       endpoint,
		SocketMode:     0600,
		MaxConnections: maxConnections,
		GCInterval:     time.Hour,
	}
	s := lstore.NewLocalStore(&lstore.Options{GCInterval: config.GCInterval})
	srv := NewRPCServer(config, unix.NewUnixServerTransport(config.MaxConnections), s)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Server failed: %v", err)
		}
		s.Close()
	})

	// wait until the socket accepts connections
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.Dial("unix", endpoint)
		if err == nil {
			conn.Close()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Server did not come up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func testEndpoint(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "uniauth")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "d.sock")
}

func newClient(t *testing.T, endpoint string) *client.SessionClient {
	t.Helper()
	c, err := client.NewSessionClient(common.ClientConfig{Endpoint: endpoint, TimeoutSecond: 5}, unix.NewUnixClientTransport())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// readResponse reads one response from a raw connection
func readResponse(t *testing.T, conn net.Conn) serializer.Response {
	t.Helper()
	buf := make([]byte, common.MaxMessageSize)
	size := 0
	for {
		n, err := conn.Read(buf[size:])
		if err != nil {
			t.Fatalf("Failed to read response: %v", err)
		}
		size += n

		var resp serializer.Response
		switch serializer.DecodeResponse(buf[:size], &resp) {
		case serializer.ResultOK:
			return resp
		case serializer.ResultError:
			t.Fatalf("Malformed response: %v", buf[:size])
		}
	}
}

// TestEndToEnd runs the basic client operations against a real daemon
func TestEndToEnd(t *testing.T) {
	endpoint := testEndpoint(t)
	startTestServer(t, endpoint, 0)
	c := newClient(t, endpoint)

	// lookup of an unknown key is absent, not an error
	if _, found, err := c.Lookup("abc"); err != nil || found {
		t.Fatalf("Expected lookup miss, got found=%v err=%v", found, err)
	}

	rec := &store.SessionRecord{Key: []byte("abc"), Username: []byte("alice"), Expire: time.Now().Add(time.Hour).Unix()}
	if ok, err := c.Create(rec); err != nil || !ok {
		t.Fatalf("Expected create to succeed, got ok=%v err=%v", ok, err)
	}
	if ok, err := c.Create(rec); err != nil || ok {
		t.Fatalf("Expected duplicate create to be rejected, got ok=%v err=%v", ok, err)
	}

	update := &store.SessionRecord{Key: []byte("abc"), ID: 17, DisplayName: []byte("Alice")}
	if ok, err := c.Commit(update); err != nil || !ok {
		t.Fatalf("Expected commit to succeed, got ok=%v err=%v", ok, err)
	}

	got, found, err := c.Lookup("abc")
	if err != nil || !found {
		t.Fatalf("Expected lookup hit, got found=%v err=%v", found, err)
	}
	expected := store.SessionRecord{
		Key:         []byte("abc"),
		ID:          17,
		Username:    []byte("alice"),
		DisplayName: []byte("Alice"),
		Expire:      rec.Expire,
	}
	if !got.Equal(&expected) {
		t.Errorf("Record doesn't match:\nExpected: %+v\nGot:      %+v", expected, got)
	}

	// transfer the identity to a second (anonymous) session
	if ok, err := c.Create(&store.SessionRecord{Key: []byte("other"), Tag: []byte("t")}); err != nil || !ok {
		t.Fatalf("Expected create to succeed, got ok=%v err=%v", ok, err)
	}
	if ok, err := c.Transfer("abc", "other"); err != nil || !ok {
		t.Fatalf("Expected transfer to succeed, got ok=%v err=%v", ok, err)
	}
	got, found, err = c.Lookup("other")
	if err != nil || !found || got.ID != 17 || string(got.Username) != "alice" || string(got.Tag) != "t" {
		t.Errorf("Unexpected transfer result: %+v (found=%v err=%v)", got, found, err)
	}
	if ok, err := c.Transfer("abc", "missing"); err != nil || ok {
		t.Errorf("Expected transfer to missing session to fail, got ok=%v err=%v", ok, err)
	}
}

// TestSplitRequest sends a request in two writes with a pause in between
func TestSplitRequest(t *testing.T) {
	endpoint := testEndpoint(t)
	startTestServer(t, endpoint, 0)

	req := serializer.Request{Op: common.OpLookup, Record: store.SessionRecord{Key: []byte("some-session-key")}}
	buf := make([]byte, common.MaxMessageSize)
	n, err := serializer.EncodeRequest(buf, &req)
	if err != nil {
		t.Fatalf("Failed to encode request: %v", err)
	}

	conn, err := net.Dial("unix", endpoint)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	for _, split := range []int{1, 5, n - 1} {
		conn.Write(buf[:split])
		time.Sleep(20 * time.Millisecond)
		conn.Write(buf[split:n])

		resp := readResponse(t, conn)
		if resp.Kind != common.RespError || string(resp.Text) != "not found" {
			t.Errorf("Split %d: unexpected response %s %q", split, resp.Kind, resp.Text)
		}
	}
}

// TestProtocolErrorClosesConnection tests that malformed requests end the connection
func TestProtocolErrorClosesConnection(t *testing.T) {
	endpoint := testEndpoint(t)
	startTestServer(t, endpoint, 0)

	for _, data := range [][]byte{{0x09}, {0x00, 0x42, 'x'}, bytes.Repeat([]byte{0x01, 0x02, 'a'}, common.MaxMessageSize)} {
		conn, err := net.Dial("unix", endpoint)
		if err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
		conn.SetDeadline(time.Now().Add(2 * time.Second))
		conn.Write(data)

		// the daemon closes without answering, unread input may turn the close into a reset
		got, err := io.ReadAll(conn)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatalf("Connection was not closed: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Expected no response, got %v", got)
		}
		conn.Close()
	}
}

// TestConcurrentClients runs several clients against one daemon
func TestConcurrentClients(t *testing.T) {
	endpoint := testEndpoint(t)
	startTestServer(t, endpoint, 0)

	var wg sync.WaitGroup
	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		c := newClient(t, endpoint)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("client-%d-%d", i, j)
				if ok, err := c.Create(&store.SessionRecord{Key: []byte(key), ID: int32(i + 1)}); err != nil || !ok {
					errCh <- fmt.Errorf("create %s: ok=%v err=%v", key, ok, err)
					return
				}
				rec, found, err := c.Lookup(key)
				if err != nil || !found || rec.ID != int32(i+1) {
					errCh <- fmt.Errorf("lookup %s: found=%v err=%v rec=%+v", key, found, err, rec)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Error(err)
	}
}

// TestMaxConnections tests that connections above the limit are closed
func TestMaxConnections(t *testing.T) {
	endpoint := testEndpoint(t)
	startTestServer(t, endpoint, 1)

	// the startup dial check may still hold the only slot for a moment
	first := newClient(t, endpoint)
	lookupEventually(t, first, "abc")

	second := newClient(t, endpoint)
	if _, _, err := second.Lookup("abc"); err == nil {
		t.Errorf("Expected second client to be rejected")
	}
}

// lookupEventually retries a lookup until the daemon has a free connection slot
func lookupEventually(t *testing.T, c *client.SessionClient, key string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, err := c.Lookup(key)
		if err == nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Lookup failed: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestHalfClosedIncompleteRequest tests that a client which stops sending in the
// middle of a request is disconnected and its connection slot is released
func TestHalfClosedIncompleteRequest(t *testing.T) {
	endpoint := testEndpoint(t)
	startTestServer(t, endpoint, 1)

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("unix", endpoint)
		if err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
		conn.SetDeadline(time.Now().Add(2 * time.Second))

		// lookup with an unterminated key
		conn.Write([]byte{byte(common.OpLookup), byte(common.FieldKey), 'a', 'b'})
		if err := conn.(*net.UnixConn).CloseWrite(); err != nil {
			t.Fatalf("Failed to half-close: %v", err)
		}

		got, err := io.ReadAll(conn)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatalf("Connection %d was not closed: %v", i, err)
		}
		if len(got) != 0 {
			t.Errorf("Expected no response, got %v", got)
		}
		conn.Close()
	}

	// the only slot is free again
	lookupEventually(t, newClient(t, endpoint), "abc")
}

// TestEndToEndAbstractNamespace runs the daemon on an abstract socket address
func TestEndToEndAbstractNamespace(t *testing.T) {
	endpoint := fmt.Sprintf("@uniauth-test-%d", os.Getpid())
	if !common.IsAbstractEndpoint(endpoint) {
		t.Fatalf("Expected %s to be an abstract endpoint", endpoint)
	}
	startTestServer(t, endpoint, 0)
	c := newClient(t, endpoint)

	if _, found, err := c.Lookup("abc"); err != nil || found {
		t.Fatalf("Expected lookup miss, got found=%v err=%v", found, err)
	}
	rec := &store.SessionRecord{Key: []byte("abc"), Username: []byte("alice")}
	if ok, err := c.Create(rec); err != nil || !ok {
		t.Fatalf("Expected create to succeed, got ok=%v err=%v", ok, err)
	}
	got, found, err := c.Lookup("abc")
	if err != nil || !found || string(got.Username) != "alice" {
		t.Errorf("Unexpected lookup result: %+v (found=%v err=%v)", got, found, err)
	}

	// no socket file is created for abstract addresses
	if _, err := os.Stat(endpoint); !os.IsNotExist(err) {
		t.Errorf("Expected no file for %s, got %v", endpoint, err)
	}
}
