package client

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/mr-karan/rosterdb/pkg/proto"
	"github.com/mr-karan/rosterdb/pkg/roster"
)

var (
	// ErrRejected is returned when the server reports a failure status for a
	// well-formed request.
	ErrRejected = errors.New("server rejected the request")

	// ErrProtocol is returned when the server answers with an Error frame or
	// an unexpected message kind.
	ErrProtocol = errors.New("protocol error")
)

// Client is a connection to a roster protocol server. It is not safe for
// concurrent use.
type Client struct {
	conn net.Conn
}

// Dial connects to a server and performs the hello handshake.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s: %w", addr, err)
	}

	c := &Client{conn: conn}
	if err := c.hello(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) hello() error {
	if err := c.writeFrame(proto.KindHelloReq, proto.EncodeHello(proto.Version)); err != nil {
		return err
	}

	kind, body, err := c.readFrame()
	if err != nil {
		return err
	}
	if kind != proto.KindHelloResp {
		return fmt.Errorf("%w: got %s during hello", ErrProtocol, kind)
	}

	version, err := proto.ParseHello(body)
	if err != nil {
		return err
	}
	if version != proto.Version {
		return fmt.Errorf("%w: server speaks v%d, client speaks v%d", ErrProtocol, version, proto.Version)
	}
	return nil
}

// Add sends a "name-address-hours" string for the server to append.
func (c *Client) Add(addstr string) error {
	body, err := proto.PackAddString(addstr)
	if err != nil {
		return err
	}
	if err := c.writeFrame(proto.KindAddReq, body); err != nil {
		return err
	}
	return c.readStatus(proto.KindAddResp)
}

// RemoveLast asks the server to drop the final record.
func (c *Client) RemoveLast() error {
	if err := c.writeFrame(proto.KindDelReq, nil); err != nil {
		return err
	}
	return c.readStatus(proto.KindDelResp)
}

// List fetches all records. The response carries the framed count followed by
// count raw record images outside the framed length, which are read back to
// back off the stream.
func (c *Client) List() ([]roster.Record, error) {
	if err := c.writeFrame(proto.KindListReq, nil); err != nil {
		return nil, err
	}

	kind, body, err := c.readFrame()
	if err != nil {
		return nil, err
	}
	if kind != proto.KindListResp {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrProtocol, kind, proto.KindListResp)
	}

	count, err := proto.ParseCount(body)
	if err != nil {
		return nil, err
	}

	records := make([]roster.Record, count)
	raw := make([]byte, roster.RecordSize)
	for i := range records {
		if _, err := io.ReadFull(c.conn, raw); err != nil {
			return nil, fmt.Errorf("error reading record stream: %w", err)
		}
		if err := records[i].UnmarshalBinary(raw); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// readStatus reads a status-bearing response of the given kind and maps a
// failure status to ErrRejected.
func (c *Client) readStatus(want proto.Kind) error {
	kind, body, err := c.readFrame()
	if err != nil {
		return err
	}
	if kind != want {
		return fmt.Errorf("%w: got %s, want %s", ErrProtocol, kind, want)
	}

	status, err := proto.ParseStatus(body)
	if err != nil {
		return err
	}
	if status != proto.StatusOK {
		return ErrRejected
	}
	return nil
}

func (c *Client) writeFrame(kind proto.Kind, body []byte) error {
	if _, err := c.conn.Write(proto.Encode(kind, body)); err != nil {
		return fmt.Errorf("error writing %s: %w", kind, err)
	}
	return nil
}

// readFrame reads one complete frame off the stream, handling partial reads.
// The header and body are read into a buffer of full message capacity so the
// codec's length checks apply as they do on the server.
func (c *Client) readFrame() (proto.Kind, []byte, error) {
	buf := make([]byte, proto.MaxMessageSize)
	if _, err := io.ReadFull(c.conn, buf[:proto.FrameHeaderSize]); err != nil {
		return 0, nil, fmt.Errorf("error reading frame header: %w", err)
	}

	_, total, _, err := proto.TryDecode(buf, proto.FrameHeaderSize)
	if err != nil {
		return 0, nil, err
	}

	if total > proto.FrameHeaderSize {
		if _, err := io.ReadFull(c.conn, buf[proto.FrameHeaderSize:total]); err != nil {
			return 0, nil, fmt.Errorf("error reading frame body: %w", err)
		}
	}

	frame, _, ok, err := proto.TryDecode(buf, total)
	if err != nil || !ok {
		return 0, nil, fmt.Errorf("%w: malformed frame", ErrProtocol)
	}

	if frame.Kind == proto.KindError {
		return frame.Kind, frame.Body, fmt.Errorf("%w: server sent an error frame", ErrProtocol)
	}
	return frame.Kind, frame.Body, nil
}
