package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"
)

// Client calls the chain gateway over HTTP. The gateway signs with the
// wallet registered for the From address and waits for mining, so every
// method here is a single blocking round trip.
type Client struct {
	baseURL    string
	from       string
	httpClient *http.Client
}

// NewClient creates a gateway client acting as the given wallet address.
func NewClient(baseURL, from string) *Client {
	return &Client{
		baseURL: baseURL,
		from:    from,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type txRequest struct {
	From       string   `json:"from"`
	GameID     string   `json:"gameId,omitempty"`
	Players    []string `json:"players,omitempty"`
	StakeWei   string   `json:"stakeWei,omitempty"`
	ValueWei   string   `json:"valueWei,omitempty"`
	Winner     string   `json:"winner,omitempty"`
	Signatures [][]byte `json:"signatures,omitempty"`
}

type gatewayError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (c *Client) CreateGame(ctx context.Context, gameID string, players []string, stakeWei *big.Int) (*Receipt, error) {
	return c.postTx(ctx, "createGame", "/games", txRequest{
		From:     c.from,
		GameID:   gameID,
		Players:  players,
		StakeWei: stakeWei.String(),
	})
}

func (c *Client) Stake(ctx context.Context, gameID string, valueWei *big.Int) (*Receipt, error) {
	return c.postTx(ctx, "stake", "/games/"+gameID+"/stake", txRequest{
		From:     c.from,
		ValueWei: valueWei.String(),
	})
}

func (c *Client) SubmitResult(ctx context.Context, gameID, winner string, signatures [][]byte) (*Receipt, error) {
	if signatures == nil {
		signatures = [][]byte{}
	}
	return c.postTx(ctx, "submitResult", "/games/"+gameID+"/result", txRequest{
		From:       c.from,
		Winner:     winner,
		Signatures: signatures,
	})
}

func (c *Client) GameStatus(ctx context.Context, gameID string) (GameStatus, error) {
	var out struct {
		Status uint8 `json:"status"`
	}
	if err := c.getJSON(ctx, "getGameStatus", "/games/"+gameID+"/status", &out); err != nil {
		return GameNonExistent, err
	}
	return GameStatus(out.Status), nil
}

func (c *Client) CreationTimestamp(ctx context.Context, gameID string) (int64, error) {
	var out struct {
		CreatedAt int64 `json:"createdAt"`
	}
	if err := c.getJSON(ctx, "creationTimestamp", "/games/"+gameID, &out); err != nil {
		return 0, err
	}
	return out.CreatedAt, nil
}

func (c *Client) NetworkInfo(ctx context.Context) (*NetworkInfo, error) {
	var out NetworkInfo
	if err := c.getJSON(ctx, "networkInfo", "/network-info", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postTx(ctx context.Context, op, path string, body txRequest) (*Receipt, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &CallError{Op: op, Reason: ReasonNetwork, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &CallError{Op: op, Reason: ReasonNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &CallError{Op: op, Reason: ReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.callError(op, resp)
	}

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, &CallError{Op: op, Reason: ReasonNetwork, Err: err}
	}
	return &receipt, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, into any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &CallError{Op: op, Reason: ReasonNetwork, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CallError{Op: op, Reason: ReasonNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.callError(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return &CallError{Op: op, Reason: ReasonNetwork, Err: err}
	}
	return nil
}

// callError maps a gateway failure response to a typed CallError. The
// gateway reports 409 for reverts and 403 for wallet rejections.
func (c *Client) callError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var ge gatewayError
	_ = json.Unmarshal(body, &ge)
	detail := ge.Error
	if detail == "" {
		detail = string(body)
	}

	reason := ReasonNetwork
	switch resp.StatusCode {
	case http.StatusConflict:
		reason = ReasonReverted
	case http.StatusForbidden:
		reason = ReasonRejected
	}

	return &CallError{Op: op, Reason: reason, Err: fmt.Errorf("%s: %s", resp.Status, detail)}
}
