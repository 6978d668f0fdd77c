package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Client is the CLI side of the control channel.
type Client struct {
	conn    *Conn
	timeout time.Duration
}

// Connect dials the control endpoint of a running interposer.
func Connect(timeout time.Duration) (*Client, error) {
	raw, err := Dial(timeout)
	if err != nil {
		return nil, fmt.Errorf("connect control endpoint: %w", err)
	}
	return &Client{conn: NewConn(raw), timeout: timeout}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Status fetches the full state snapshot.
func (c *Client) Status() (*StatusReply, error) {
	env, err := c.roundTrip(TypeStatusRequest, nil)
	if err != nil {
		return nil, err
	}
	var reply StatusReply
	if err := json.Unmarshal(env.Payload, &reply); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &reply, nil
}

// Toggle flips generation or overlay state and returns the new value.
func (c *Client) Toggle(target string) (*ToggleReply, error) {
	env, err := c.roundTrip(TypeToggle, ToggleRequest{Target: target})
	if err != nil {
		return nil, err
	}
	var reply ToggleReply
	if err := json.Unmarshal(env.Payload, &reply); err != nil {
		return nil, fmt.Errorf("decode toggle reply: %w", err)
	}
	return &reply, nil
}

// Set updates one named setting.
func (c *Client) Set(key, value string) error {
	_, err := c.roundTrip(TypeSet, SetRequest{Key: key, Value: value})
	return err
}

func (c *Client) roundTrip(msgType string, payload any) (*Envelope, error) {
	id := uuid.NewString()

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	defer c.conn.SetDeadline(time.Time{})

	if payload != nil {
		if err := c.conn.SendTyped(id, msgType, payload); err != nil {
			return nil, err
		}
	} else {
		if err := c.conn.Send(&Envelope{ID: id, Type: msgType}); err != nil {
			return nil, err
		}
	}

	env, err := c.conn.Recv()
	if err != nil {
		return nil, err
	}
	if env.ID != id {
		return nil, fmt.Errorf("ipc: reply id %q does not match request %q", env.ID, id)
	}
	if env.Error != "" {
		return nil, errors.New(env.Error)
	}
	return env, nil
}
