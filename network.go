package bwfs

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
)

const networkBufferSize = 8 * 1024

// Request is one frame sent to a NetworkServer.
type Request struct {
	Kind  string `json:"kind"`
	Index uint32 `json:"index,omitempty"`
	Data  []byte `json:"data,omitempty"`
}

// Response is one frame sent back by a NetworkServer.
type Response struct {
	Kind    string `json:"kind"`
	Data    []byte `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	reqPing       = "ping"
	reqReadBlock  = "read_block"
	reqWriteBlock = "write_block"

	respPong      = "pong"
	respBlockData = "block_data"
	respSuccess   = "success"
	respError     = "error"
)

// NetworkServer exposes a BlockStorage over a framed TCP protocol, one JSON
// document per direction inside an 8 KiB buffer. It is the one component
// the specification allows to stay minimal: no retries, no TLS, no
// reconnection logic.
type NetworkServer struct {
	storage *BlockStorage
	log     *logrus.Logger
}

func NewNetworkServer(storage *BlockStorage) *NetworkServer {
	return &NetworkServer{storage: storage, log: logrus.StandardLogger()}
}

// Serve accepts connections on ln until it returns an error (including on
// listener close), spawning one goroutine per connection.
func (s *NetworkServer) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *NetworkServer) handleConn(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, networkBufferSize)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(buf[:n], &req); err != nil {
			s.reply(conn, Response{Kind: respError, Message: fmt.Sprintf("malformed request: %v", err)})
			continue
		}

		switch req.Kind {
		case reqPing:
			s.reply(conn, Response{Kind: respPong})
		case reqReadBlock:
			data, err := s.storage.Read(req.Index)
			if err != nil {
				s.reply(conn, Response{Kind: respError, Message: err.Error()})
				continue
			}
			s.reply(conn, Response{Kind: respBlockData, Data: data})
		case reqWriteBlock:
			if err := s.storage.Write(req.Index, req.Data); err != nil {
				s.reply(conn, Response{Kind: respError, Message: err.Error()})
				continue
			}
			s.reply(conn, Response{Kind: respSuccess})
		default:
			s.reply(conn, Response{Kind: respError, Message: fmt.Sprintf("unknown request kind %q", req.Kind)})
		}
	}
}

func (s *NetworkServer) reply(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.WithError(err).Error("failed to marshal network response")
		return
	}
	if _, err := conn.Write(data); err != nil {
		s.log.WithError(err).Warn("failed to write network response")
	}
}
