package server

import (
	"github.com/mr-karan/rosterdb/pkg/proto"
	"github.com/mr-karan/rosterdb/pkg/roster"
)

// dispatch handles one complete frame according to the peer's FSM state.
// Engine rejections are reported in the response status and keep the
// connection in Ready; protocol violations send an Error frame and close it.
func (s *Server) dispatch(c *conn, f proto.Frame) {
	switch c.state {
	case stateAwaitingHello:
		s.handleHello(c, f)

	case stateReady:
		switch f.Kind {
		case proto.KindListReq:
			if len(f.Body) != 0 {
				s.replyError(c, "list request has unexpected payload")
				return
			}
			s.handleList(c)
		case proto.KindAddReq:
			if len(f.Body) != proto.AddDataSize {
				s.replyError(c, "add request length mismatch")
				return
			}
			s.handleAdd(c, f.Body)
		case proto.KindDelReq:
			if len(f.Body) != 0 {
				s.replyError(c, "remove request has unexpected payload")
				return
			}
			s.handleRemove(c)
		default:
			s.replyError(c, "unexpected message kind in Ready state")
		}

	default:
		s.replyError(c, "message on a closed connection")
	}
}

func (s *Server) handleHello(c *conn, f proto.Frame) {
	if f.Kind != proto.KindHelloReq {
		s.replyError(c, "expected HelloReq in AwaitingHello state")
		return
	}

	version, err := proto.ParseHello(f.Body)
	if err != nil {
		s.replyError(c, "hello request length mismatch")
		return
	}
	if version != proto.Version {
		s.replyError(c, "protocol mismatch")
		return
	}

	if s.send(c, proto.Encode(proto.KindHelloResp, proto.EncodeHello(proto.Version))) {
		c.state = stateReady
		s.lo.Debug("peer upgraded to Ready", "fd", c.fd)
	}
}

func (s *Server) handleAdd(c *conn, body []byte) {
	status := proto.StatusOK

	addstr, err := proto.UnpackAddString(body)
	if err != nil {
		status = proto.StatusError
	} else if err := s.store.Add(addstr); err != nil {
		s.lo.Error("add rejected", "fd", c.fd, "error", err)
		status = proto.StatusError
	}

	s.send(c, proto.Encode(proto.KindAddResp, proto.EncodeStatus(status)))
}

func (s *Server) handleRemove(c *conn) {
	status := proto.StatusOK
	if err := s.store.RemoveLast(); err != nil {
		s.lo.Error("remove rejected", "fd", c.fd, "error", err)
		status = proto.StatusError
	}

	s.send(c, proto.Encode(proto.KindDelResp, proto.EncodeStatus(status)))
}

// handleList sends the framed count followed by the raw record stream. The
// stream is deliberately outside the frame's declared length; peers read
// exactly count record-sized chunks after the response body.
func (s *Server) handleList(c *conn) {
	count := s.store.Len()
	if !s.send(c, proto.Encode(proto.KindListResp, proto.EncodeCount(uint16(count)))) {
		return
	}

	err := s.store.Fold(func(r roster.Record) error {
		b, err := r.MarshalBinary()
		if err != nil {
			return err
		}
		return sendFull(c.fd, b)
	})
	if err != nil {
		s.lo.Error("error streaming record list", "fd", c.fd, "error", err)
		c.state = stateClosed
		return
	}

	s.lo.Debug("record list sent", "fd", c.fd, "count", count)
}

// send writes a full frame to the peer, closing the connection on failure.
// It reports whether the write succeeded.
func (s *Server) send(c *conn, b []byte) bool {
	if err := sendFull(c.fd, b); err != nil {
		s.lo.Error("error writing response", "fd", c.fd, "error", err)
		c.state = stateClosed
		return false
	}
	return true
}

// replyError sends an Error frame if the socket is still writeable and marks
// the connection Closed.
func (s *Server) replyError(c *conn, reason string) {
	s.lo.Error("protocol violation", "fd", c.fd, "state", c.state.String(), "reason", reason)
	if err := sendFull(c.fd, proto.Encode(proto.KindError, nil)); err != nil {
		s.lo.Error("error writing error frame", "fd", c.fd, "error", err)
	}
	c.state = stateClosed
}
