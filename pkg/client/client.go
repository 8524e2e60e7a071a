// Package client is a Go client for the memfsd line protocol.
//
// Every call sends one request and returns the status the server replied
// with. Domain failures (missing file, wrong credentials, ...) are statuses,
// not errors; the error return is reserved for transport problems and
// arguments that cannot be encoded. Once the server hangs up, calls return
// line.StatusClosedConnection together with ErrClosed.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/marmos91/memfsd/internal/protocol/line"
	"github.com/marmos91/memfsd/pkg/memfs"
)

// Status is the server's reply code.
type Status = line.Status

// ErrClosed is returned once the connection has been closed by either side.
var ErrClosed = errors.New("connection closed")

// Options tune a Client.
type Options struct {
	// Timeout bounds each request round trip. 0 means none.
	Timeout time.Duration

	// MaxLineBytes bounds reply lines. 0 means line.DefaultMaxLineBytes.
	MaxLineBytes int
}

// Client is a connection to a memfsd socket. Requests are serialized; a
// Client may be shared between goroutines.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	opts   Options
	closed bool
}

// Dial connects to the socket at path.
func Dial(ctx context.Context, path string, opts Options) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return New(conn, opts), nil
}

// New wraps an established connection.
func New(conn net.Conn, opts Options) *Client {
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		opts:   opts,
	}
}

// Close closes the connection without sending an exit request.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// Register creates an account.
func (c *Client) Register(name, password string) (Status, error) {
	status, _, err := c.do(&line.Request{Op: line.OpRegister, Client: name, Password: password})
	return status, err
}

// Login authenticates the connection.
func (c *Client) Login(name, password string) (Status, error) {
	status, _, err := c.do(&line.Request{Op: line.OpLogin, Client: name, Password: password})
	return status, err
}

// Exit ends the session. The server replies StatusExit and hangs up.
func (c *Client) Exit() (Status, error) {
	status, _, err := c.do(&line.Request{Op: line.OpExit})
	if err == nil {
		_ = c.Close()
	}
	return status, err
}

// Logout leaves the file menu. The connection stays open but is no longer
// logged in.
func (c *Client) Logout() (Status, error) {
	status, _, err := c.do(&line.Request{Op: line.OpLogout})
	return status, err
}

// Create adds a file.
func (c *Client) Create(name, content string, owner, others memfs.Permission) (Status, error) {
	status, _, err := c.do(&line.Request{Op: line.OpCreate, Name: name, Content: content, Owner: owner, Others: others})
	return status, err
}

// Delete removes a file.
func (c *Client) Delete(name string) (Status, error) {
	status, _, err := c.do(&line.Request{Op: line.OpDelete, Name: name})
	return status, err
}

// Rename moves a file to a new name.
func (c *Client) Rename(oldName, newName string) (Status, error) {
	status, _, err := c.do(&line.Request{Op: line.OpRename, Name: oldName, NewName: newName})
	return status, err
}

// Open opens a file and returns its descriptor. fd is -1 unless the status
// is StatusOk.
func (c *Client) Open(name string, perm memfs.Permission) (fd int, status Status, err error) {
	status, payload, err := c.do(&line.Request{Op: line.OpOpen, Name: name, Permission: perm})
	if err != nil || status != line.StatusOk {
		return -1, status, err
	}
	fd, err = strconv.Atoi(payload[0])
	if err != nil {
		return -1, status, fmt.Errorf("invalid descriptor %q in reply", payload[0])
	}
	return fd, status, nil
}

// CloseFile closes a descriptor.
func (c *Client) CloseFile(fd int) (Status, error) {
	status, _, err := c.do(&line.Request{Op: line.OpClose, FD: fd})
	return status, err
}

// Read returns the first length characters of the file behind fd.
func (c *Client) Read(fd, length int) (string, Status, error) {
	status, payload, err := c.do(&line.Request{Op: line.OpRead, FD: fd, Length: length})
	if err != nil || status != line.StatusOk {
		return "", status, err
	}
	return payload[0], status, nil
}

// Write replaces the content of the file behind fd.
func (c *Client) Write(fd int, content string, length int) (Status, error) {
	status, _, err := c.do(&line.Request{Op: line.OpWrite, FD: fd, Content: content, Length: length})
	return status, err
}

// Send writes a raw request line and reads the status. It exists for tools
// and tests that need to send lines the typed methods would refuse.
//
// If the line parses as a request whose reply carries payload lines, those
// are read and discarded so the next call starts at a status line.
func (c *Client) Send(text string) (Status, error) {
	op := line.Op(0)
	if req, err := line.Parse(text); err == nil {
		op = req.Op
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	status, _, err := c.roundTrip(text, op)
	return status, err
}

func (c *Client) do(req *line.Request) (Status, []string, error) {
	text, err := req.Encode()
	if err != nil {
		return line.StatusMiscellaneousError, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.roundTrip(text, req.Op)
}

// roundTrip sends text and reads the status plus the payload lines op
// expects for it. The caller holds c.mu.
func (c *Client) roundTrip(text string, op line.Op) (Status, []string, error) {
	if err := c.write(text); err != nil {
		status, err := c.fail(err)
		return status, nil, err
	}

	status, err := line.ReadStatus(c.reader)
	if err != nil {
		status, err := c.fail(err)
		return status, nil, err
	}

	n := line.Payload(op, status)
	payload := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p, err := line.ReadLine(c.reader, c.opts.MaxLineBytes)
		if err != nil {
			status, err := c.fail(err)
			return status, nil, err
		}
		payload = append(payload, p)
	}
	return status, payload, nil
}

func (c *Client) write(text string) error {
	if c.closed {
		return ErrClosed
	}
	if c.opts.Timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.opts.Timeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.conn, text+"\n")
	return err
}

// fail maps a transport error to a status. A hang-up by the server becomes
// StatusClosedConnection.
func (c *Client) fail(err error) (Status, error) {
	if errors.Is(err, ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) || isConnReset(err) {
		if !c.closed {
			c.closed = true
			_ = c.conn.Close()
		}
		return line.StatusClosedConnection, ErrClosed
	}
	return line.StatusMiscellaneousError, err
}

// isConnReset reports a peer that went away mid-request.
func isConnReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}
