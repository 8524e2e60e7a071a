package socket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/memfsd/internal/logger"
	"github.com/marmos91/memfsd/internal/protocol/line"
	"github.com/marmos91/memfsd/internal/ratelimiter"
)

// errClientExit ends the serve loop after an m|e request has been answered.
var errClientExit = errors.New("client exit")

// Connection serves the requests of one client.
//
// It tracks which account the connection has logged in as. That state is
// local to the connection: the registry's online set records logins for the
// lifetime of the process and is not touched on logout or disconnect.
type Connection struct {
	server    *SocketAdapter
	conn      net.Conn
	reader    *bufio.Reader
	limiter   *ratelimiter.RateLimiter
	sessionID string

	// client is the account logged in on this connection, empty if none
	client string
}

// NewConnection wraps an accepted socket connection.
func NewConnection(server *SocketAdapter, conn net.Conn) *Connection {
	return &Connection{
		server:    server,
		conn:      conn,
		reader:    bufio.NewReader(conn),
		limiter:   ratelimiter.New(server.config.RateLimit),
		sessionID: uuid.NewString(),
	}
}

// SessionID returns the id used to correlate this connection's log lines.
func (c *Connection) SessionID() string {
	return c.sessionID
}

// Serve handles requests until the client exits or disconnects, a protocol
// error occurs, a deadline expires or ctx is cancelled.
//
// A panic while handling a request is recovered and closes only this
// connection.
func (c *Connection) Serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in connection %s: %v", c.sessionID, r)
		}
		_ = c.conn.Close()
	}()

	logger.Debug("[%s] new connection", c.sessionID)

	for {
		select {
		case <-ctx.Done():
			logger.Debug("[%s] closed due to context cancellation", c.sessionID)
			return
		case <-c.server.shutdown:
			logger.Debug("[%s] closed due to server shutdown", c.sessionID)
			return
		default:
		}

		err := c.handleRequest(ctx)
		if err == nil {
			continue
		}

		var netErr net.Error
		switch {
		case errors.Is(err, errClientExit):
			logger.Debug("[%s] client exited", c.sessionID)
		case errors.Is(err, io.EOF):
			logger.Debug("[%s] closed by client", c.sessionID)
		case line.IsProtocolError(err):
			c.server.metrics.RecordProtocolError()
			logger.Warn("[%s] closing connection: %v", c.sessionID, err)
		case errors.As(err, &netErr) && netErr.Timeout():
			logger.Debug("[%s] timed out: %v", c.sessionID, err)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			logger.Debug("[%s] cancelled: %v", c.sessionID, err)
		default:
			logger.Debug("[%s] error handling request: %v", c.sessionID, err)
		}
		return
	}
}

// handleRequest reads, parses, dispatches and answers one request line.
func (c *Connection) handleRequest(ctx context.Context) error {
	cfg := c.server.config

	if cfg.Timeouts.Idle > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(cfg.Timeouts.Idle)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
		// The idle deadline must not replace the one shutdown just expired
		c.server.interruptIfShuttingDown(c.conn)
	}

	text, err := line.ReadLine(c.reader, cfg.MaxLineBytes)
	if err != nil {
		return err
	}

	req, err := line.Parse(text)
	if err != nil {
		return err
	}
	logger.Debug("[%s] request %s", c.sessionID, req.Op)

	reqCtx := ctx
	if cfg.Timeouts.Read > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, cfg.Timeouts.Read)
		defer cancel()
	}

	if !c.limiter.Allow() {
		c.server.metrics.RecordRateLimited()
		if err := c.limiter.Wait(reqCtx); err != nil {
			return err
		}
	}

	op := req.Op.String()
	c.server.metrics.RecordRequestStart(op)
	start := time.Now()
	status, payload := c.dispatch(reqCtx, req)
	c.server.metrics.RecordRequestEnd(op)
	c.server.metrics.RecordRequest(op, time.Since(start), status.String())

	logger.Debug("[%s] %s -> %d (%s)", c.sessionID, req.Op, status, status)

	if err := c.sendReply(status, payload...); err != nil {
		return err
	}

	if req.Op == line.OpExit {
		return errClientExit
	}
	return nil
}

// dispatch routes a request to the account registry or the file service and
// returns the status plus any payload lines.
func (c *Connection) dispatch(ctx context.Context, req *line.Request) (line.Status, []string) {
	accounts := c.server.services.Accounts
	files := c.server.services.Files

	switch req.Op {
	case line.OpRegister:
		return line.StatusFromError(accounts.Register(ctx, req.Client, req.Password)), nil

	case line.OpLogin:
		err := accounts.Login(ctx, req.Client, req.Password)
		if err == nil {
			c.client = req.Client
			logger.Info("[%s] %q logged in", c.sessionID, req.Client)
		}
		return line.StatusFromError(err), nil

	case line.OpExit:
		return line.StatusExit, nil

	case line.OpLogout:
		if c.client != "" {
			logger.Debug("[%s] %q logged out", c.sessionID, c.client)
		}
		c.client = ""
		return line.StatusExit, nil
	}

	if c.server.config.RequireAuth && c.client == "" {
		logger.Debug("[%s] %s rejected: not logged in", c.sessionID, req.Op)
		return line.StatusPermissionDenied, nil
	}

	switch req.Op {
	case line.OpCreate:
		return line.StatusFromError(files.Create(ctx, req.Name, req.Content, req.Owner, req.Others)), nil

	case line.OpDelete:
		return line.StatusFromError(files.Delete(ctx, req.Name)), nil

	case line.OpRename:
		return line.StatusFromError(files.Rename(ctx, req.Name, req.NewName)), nil

	case line.OpOpen:
		h, err := files.Open(ctx, req.Name, req.Permission)
		if err != nil {
			return line.StatusFromError(err), nil
		}
		return line.StatusOk, []string{strconv.Itoa(h.FD)}

	case line.OpClose:
		return line.StatusFromError(files.Close(ctx, req.FD)), nil

	case line.OpRead:
		text, err := files.Read(ctx, req.FD, req.Length)
		if err != nil {
			return line.StatusFromError(err), nil
		}
		return line.StatusOk, []string{text}

	case line.OpWrite:
		_, err := files.Write(ctx, req.FD, req.Content, req.Length)
		return line.StatusFromError(err), nil
	}

	// Parse only produces the operations above
	panic(fmt.Sprintf("unhandled operation %s", req.Op))
}

func (c *Connection) sendReply(status line.Status, payload ...string) error {
	if c.server.config.Timeouts.Write > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.Timeouts.Write)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	return line.WriteReply(c.conn, status, payload...)
}
