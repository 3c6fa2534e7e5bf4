package websocket

import (
	"bufio"
	"crypto/sha1" //nolint:gosec // required by RFC6455
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/c360/simucore/errors"
)

const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// AcceptKey derives the Sec-WebSocket-Accept token for a client key
func AcceptKey(key string) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(key))
	h.Write([]byte(acceptGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// serverHandshake reads the opening request from br and answers it on w.
// Only the key header is required; other upgrade headers are not checked.
func serverHandshake(br *bufio.Reader, w io.Writer) error {
	req, err := http.ReadRequest(br)
	if err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrHandshakeFailed, err), "websocket", "handshake", "read request")
	}
	if req.Body != nil {
		_ = req.Body.Close()
	}

	key := strings.TrimSpace(req.Header.Get("Sec-WebSocket-Key"))
	if key == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: missing Sec-WebSocket-Key", errors.ErrHandshakeFailed), "websocket", "handshake", "key check")
	}

	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + AcceptKey(key) + "\r\n\r\n"
	if _, err := io.WriteString(w, resp); err != nil {
		return errors.WrapTransient(err, "websocket", "handshake", "write response")
	}
	return nil
}
