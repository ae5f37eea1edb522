package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(serviceName+"."+method, req, resp)
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Record stores a log entry through the daemon.
func (c *Client) Record(req RecordRequest) (*RecordResponse, error) {
	var resp RecordResponse
	if err := c.call("Record", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListEntries returns entries optionally filtered by sync state.
func (c *Client) ListEntries(states []string) (*ListEntriesResponse, error) {
	var resp ListEntriesResponse
	if err := c.call("ListEntries", ListEntriesRequest{States: states}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListPending returns unsynced entries in creation order.
func (c *Client) ListPending() (*ListEntriesResponse, error) {
	var resp ListEntriesResponse
	if err := c.call("ListPending", ListPendingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncNow runs a sweep and waits for it to finish.
func (c *Client) SyncNow() (*SyncNowResponse, error) {
	var resp SyncNowResponse
	if err := c.call("SyncNow", SyncNowRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Compact removes synced entries.
func (c *Client) Compact() (*CompactResponse, error) {
	var resp CompactResponse
	if err := c.call("Compact", CompactRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.call("DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
