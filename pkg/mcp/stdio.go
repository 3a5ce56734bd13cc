package mcp

import (
	"bufio"
	"bytes"
	"context"
	"io"

	gerrors "github.com/yushimatenjin/gaea-mcp/pkg/errors"
)

// maxMessageSize bounds one request line or HTTP body.
const maxMessageSize = 4 << 20

// ServeStdio reads one JSON-RPC message per line from r and writes each
// response as one line to w. Requests are handled in arrival order. It
// returns nil when r reaches EOF or ctx is done.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxMessageSize)
	bw := bufio.NewWriter(w)

	s.logger.Info("serving on stdio")
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		resp := s.Handle(ctx, line)
		if resp == nil {
			continue
		}
		bw.Write(resp)
		bw.WriteByte('\n')
		if err := bw.Flush(); err != nil {
			return gerrors.Wrap(gerrors.ErrCodeIO, err, "write response")
		}
	}
	if err := sc.Err(); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeIO, err, "read request")
	}
	return nil
}
