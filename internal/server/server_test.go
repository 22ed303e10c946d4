package server_test

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zerodha/logf"

	"github.com/mr-karan/rosterdb/internal/server"
	"github.com/mr-karan/rosterdb/pkg/client"
	"github.com/mr-karan/rosterdb/pkg/proto"
	"github.com/mr-karan/rosterdb/pkg/roster"
)

type testServer struct {
	addr  string
	store *roster.Store
	srv   *server.Server
	done  chan error
}

// startServer boots a server on an ephemeral port against the given db file.
func startServer(t *testing.T, dbPath string, create bool, maxClients int) *testServer {
	t.Helper()

	cfgs := []roster.Config{roster.WithPath(dbPath)}
	if create {
		cfgs = append(cfgs, roster.WithCreate())
	}
	store, err := roster.Init(cfgs...)
	if err != nil {
		t.Fatal(err)
	}

	srv := server.New(store, logf.New(logf.Opts{}), server.Opts{Port: 0, MaxClients: maxClients})
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- srv.Run()
	}()

	return &testServer{
		addr:  fmt.Sprintf("127.0.0.1:%d", srv.Port()),
		store: store,
		srv:   srv,
		done:  done,
	}
}

// stop shuts the loop down and persists the store, as the process driver does.
func (ts *testServer) stop(t *testing.T) {
	t.Helper()

	ts.srv.Stop()
	select {
	case err := <-ts.done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event loop did not exit")
	}
	if err := ts.store.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

func TestEndToEnd(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
		ts     = startServer(t, dbPath, true, 0)
	)
	defer ts.stop(t)

	c, err := client.Dial(ts.addr)
	assert.NoError(err)
	defer c.Close()

	t.Run("AddAndList", func(t *testing.T) {
		assert.NoError(c.Add("Alice-1 Main St-40"))

		records, err := c.List()
		assert.NoError(err)
		assert.Len(records, 1)
		assert.Equal("Alice", records[0].NameString())
		assert.Equal("1 Main St", records[0].AddressString())
		assert.Equal(uint32(40), records[0].Hours)
	})

	t.Run("AddMalformedKeepsSession", func(t *testing.T) {
		assert.ErrorIs(c.Add("not an add string"), client.ErrRejected)

		// Connection stays in Ready.
		records, err := c.List()
		assert.NoError(err)
		assert.Len(records, 1)
	})

	t.Run("RemoveLast", func(t *testing.T) {
		assert.NoError(c.RemoveLast())

		records, err := c.List()
		assert.NoError(err)
		assert.Len(records, 0)
	})

	t.Run("RemoveFromEmpty", func(t *testing.T) {
		assert.ErrorIs(c.RemoveLast(), client.ErrRejected)

		// Still Ready afterwards.
		records, err := c.List()
		assert.NoError(err)
		assert.Len(records, 0)
	})
}

func TestProtocolMismatch(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
		ts     = startServer(t, dbPath, true, 0)
	)
	defer ts.stop(t)

	conn, err := net.Dial("tcp", ts.addr)
	assert.NoError(err)
	defer conn.Close()

	_, err = conn.Write(proto.Encode(proto.KindHelloReq, proto.EncodeHello(99)))
	assert.NoError(err)

	// Expect a bare Error frame, then EOF.
	hdr := make([]byte, proto.FrameHeaderSize)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(conn, hdr)
	assert.NoError(err)
	assert.Equal(uint32(proto.KindError), binary.BigEndian.Uint32(hdr[0:4]))
	assert.Equal(uint16(0), binary.BigEndian.Uint16(hdr[4:6]))

	_, err = conn.Read(hdr)
	assert.ErrorIs(err, io.EOF)
}

func TestUnknownKindInReady(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
		ts     = startServer(t, dbPath, true, 0)
	)
	defer ts.stop(t)

	conn, err := net.Dial("tcp", ts.addr)
	assert.NoError(err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	// Proper hello first.
	_, err = conn.Write(proto.Encode(proto.KindHelloReq, proto.EncodeHello(proto.Version)))
	assert.NoError(err)
	resp := make([]byte, proto.FrameHeaderSize+proto.HelloBodySize)
	_, err = io.ReadFull(conn, resp)
	assert.NoError(err)

	// A response kind is not a valid request.
	_, err = conn.Write(proto.Encode(proto.KindDelResp, proto.EncodeStatus(proto.StatusOK)))
	assert.NoError(err)

	hdr := make([]byte, proto.FrameHeaderSize)
	_, err = io.ReadFull(conn, hdr)
	assert.NoError(err)
	assert.Equal(uint32(proto.KindError), binary.BigEndian.Uint32(hdr[0:4]))

	_, err = conn.Read(hdr)
	assert.ErrorIs(err, io.EOF)
}

func TestPartialReadFraming(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
		ts     = startServer(t, dbPath, true, 0)
	)
	defer ts.stop(t)

	conn, err := net.Dial("tcp", ts.addr)
	assert.NoError(err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	_, err = conn.Write(proto.Encode(proto.KindHelloReq, proto.EncodeHello(proto.Version)))
	assert.NoError(err)
	resp := make([]byte, proto.FrameHeaderSize+proto.HelloBodySize)
	_, err = io.ReadFull(conn, resp)
	assert.NoError(err)

	// Send a valid AddReq split mid-header, with a pause in between.
	body, err := proto.PackAddString("Alice-1 Main St-40")
	assert.NoError(err)
	wire := proto.Encode(proto.KindAddReq, body)

	_, err = conn.Write(wire[:3])
	assert.NoError(err)
	time.Sleep(50 * time.Millisecond)
	_, err = conn.Write(wire[3:])
	assert.NoError(err)

	// Exactly one AddResp with a success status.
	respBuf := make([]byte, proto.FrameHeaderSize+proto.StatusBodySize)
	_, err = io.ReadFull(conn, respBuf)
	assert.NoError(err)
	assert.Equal(uint32(proto.KindAddResp), binary.BigEndian.Uint32(respBuf[0:4]))
	assert.Equal(int32(proto.StatusOK), int32(binary.BigEndian.Uint32(respBuf[6:10])))
}

func TestTableSaturation(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
		ts     = startServer(t, dbPath, true, 2)
	)
	defer ts.stop(t)

	c1, err := client.Dial(ts.addr)
	assert.NoError(err)
	defer c1.Close()

	c2, err := client.Dial(ts.addr)
	assert.NoError(err)
	defer c2.Close()

	// The third connection is accepted at the socket level but closed
	// immediately with no frames sent.
	conn, err := net.Dial("tcp", ts.addr)
	assert.NoError(err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	assert.ErrorIs(err, io.EOF)

	// The two admitted peers keep working.
	assert.NoError(c1.Add("Alice-1 Main St-40"))
	records, err := c2.List()
	assert.NoError(err)
	assert.Len(records, 1)
}

func TestPersistenceAcrossRestart(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
		ts     = startServer(t, dbPath, true, 0)
	)

	c, err := client.Dial(ts.addr)
	assert.NoError(err)

	assert.NoError(c.Add("A-addr a-1"))
	assert.NoError(c.Add("B-addr b-2"))
	assert.NoError(c.Add("C-addr c-3"))
	assert.NoError(c.RemoveLast())
	c.Close()

	ts.stop(t)

	// Restart against the same file.
	ts = startServer(t, dbPath, false, 0)
	defer ts.stop(t)

	c, err = client.Dial(ts.addr)
	assert.NoError(err)
	defer c.Close()

	records, err := c.List()
	assert.NoError(err)
	assert.Len(records, 2)
	assert.Equal("A", records[0].NameString())
	assert.Equal("B", records[1].NameString())
}

func TestPipelinedRequests(t *testing.T) {
	var (
		assert = assert.New(t)
		dbPath = filepath.Join(t.TempDir(), "roster.db")
		ts     = startServer(t, dbPath, true, 0)
	)
	defer ts.stop(t)

	conn, err := net.Dial("tcp", ts.addr)
	assert.NoError(err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	// Hello plus two adds written as one burst; the server must dispatch all
	// three frames from the buffer and answer each in order.
	bodyA, err := proto.PackAddString("Alice-1 Main St-40")
	assert.NoError(err)
	bodyB, err := proto.PackAddString("Bob-2 Oak Ave-38")
	assert.NoError(err)

	burst := proto.Encode(proto.KindHelloReq, proto.EncodeHello(proto.Version))
	burst = append(burst, proto.Encode(proto.KindAddReq, bodyA)...)
	burst = append(burst, proto.Encode(proto.KindAddReq, bodyB)...)
	_, err = conn.Write(burst)
	assert.NoError(err)

	resp := make([]byte, proto.FrameHeaderSize+proto.HelloBodySize)
	_, err = io.ReadFull(conn, resp)
	assert.NoError(err)
	assert.Equal(uint32(proto.KindHelloResp), binary.BigEndian.Uint32(resp[0:4]))

	for i := 0; i < 2; i++ {
		respBuf := make([]byte, proto.FrameHeaderSize+proto.StatusBodySize)
		_, err = io.ReadFull(conn, respBuf)
		assert.NoError(err)
		assert.Equal(uint32(proto.KindAddResp), binary.BigEndian.Uint32(respBuf[0:4]))
		assert.Equal(int32(proto.StatusOK), int32(binary.BigEndian.Uint32(respBuf[6:10])))
	}
}
