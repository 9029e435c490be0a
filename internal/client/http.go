package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/model"
)

// HTTPClient implements TrustplayClient using the Trustplay HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	identity   string
	httpClient *http.Client
}

// NewHTTPClient creates a client targeting baseURL (e.g.
// "http://localhost:8080"). A non-empty token is sent as a bearer token and
// a non-empty identity as the caller identity on every request.
func NewHTTPClient(baseURL, token, identity string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		identity:   identity,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Rooms ---

func (c *HTTPClient) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*engine.RoomResult, error) {
	var res engine.RoomResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/rooms", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) GetRoom(ctx context.Context, room string) (*model.Room, error) {
	var r model.Room
	if err := c.doJSON(ctx, http.MethodGet, roomPath(room, ""), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) ListRooms(ctx context.Context, req *ListRoomsRequest) (*ListRoomsResponse, error) {
	q := url.Values{}
	if req.Organizer != "" {
		q.Set("organizer", req.Organizer)
	}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	setPage(q, req.Limit, req.Offset)

	var resp ListRoomsResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/v1/rooms", q), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) StartRoom(ctx context.Context, room string) (*model.Room, error) {
	var r model.Room
	if err := c.doJSON(ctx, http.MethodPost, roomPath(room, "/start"), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) CancelRoom(ctx context.Context, room string) (*model.Room, error) {
	var r model.Room
	if err := c.doJSON(ctx, http.MethodPost, roomPath(room, "/cancel"), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *HTTPClient) JoinRoom(ctx context.Context, room string) (*model.Participant, error) {
	var p model.Participant
	if err := c.doJSON(ctx, http.MethodPost, roomPath(room, "/participants"), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) ListParticipants(ctx context.Context, room string) ([]*model.Participant, error) {
	var resp struct {
		Participants []*model.Participant `json:"participants"`
	}
	if err := c.doJSON(ctx, http.MethodGet, roomPath(room, "/participants"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Participants, nil
}

// --- Vault ---

func (c *HTTPClient) Deposit(ctx context.Context, room string, amount uint64) (*engine.DepositResult, error) {
	body := map[string]uint64{"amount": amount}
	var res engine.DepositResult
	if err := c.doJSON(ctx, http.MethodPost, roomPath(room, "/deposits"), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) GetVault(ctx context.Context, room string) (*engine.VaultView, error) {
	var v engine.VaultView
	if err := c.doJSON(ctx, http.MethodGet, roomPath(room, "/vault"), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) ListDeposits(ctx context.Context, room string) ([]*model.Deposit, error) {
	var resp struct {
		Deposits []*model.Deposit `json:"deposits"`
	}
	if err := c.doJSON(ctx, http.MethodGet, roomPath(room, "/deposits"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Deposits, nil
}

// --- Claims ---

func (c *HTTPClient) SubmitClaim(ctx context.Context, req *SubmitClaimRequest) (*model.Claim, error) {
	var cl model.Claim
	if err := c.doJSON(ctx, http.MethodPost, roomPath(req.Room, "/claims"), req, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

func (c *HTTPClient) GetClaim(ctx context.Context, claim string) (*model.Claim, error) {
	var cl model.Claim
	if err := c.doJSON(ctx, http.MethodGet, claimPath(claim, ""), nil, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

func (c *HTTPClient) ListClaims(ctx context.Context, req *ListClaimsRequest) ([]*model.Claim, error) {
	q := url.Values{}
	if req.Claimant != "" {
		q.Set("claimant", req.Claimant)
	}
	if req.Resolved != nil {
		q.Set("resolved", strconv.FormatBool(*req.Resolved))
	}
	setPage(q, req.Limit, req.Offset)

	path := "/v1/claims"
	if req.Room != "" {
		path = roomPath(req.Room, "/claims")
	}
	var resp struct {
		Claims []*model.Claim `json:"claims"`
	}
	if err := c.doJSON(ctx, http.MethodGet, withQuery(path, q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Claims, nil
}

func (c *HTTPClient) CastVote(ctx context.Context, claim string, accept bool) (*engine.VoteResult, error) {
	body := map[string]bool{"accept": accept}
	var res engine.VoteResult
	if err := c.doJSON(ctx, http.MethodPost, claimPath(claim, "/votes"), body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ListVotes(ctx context.Context, claim string) ([]*model.VoterRecord, error) {
	var resp struct {
		Votes []*model.VoterRecord `json:"votes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, claimPath(claim, "/votes"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Votes, nil
}

func (c *HTTPClient) ResolveClaim(ctx context.Context, req *ResolveClaimRequest) (*engine.ResolveResult, error) {
	var res engine.ResolveResult
	if err := c.doJSON(ctx, http.MethodPost, claimPath(req.Claim, "/resolve"), req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Whitelist ---

func (c *HTTPClient) InitializeWhitelist(ctx context.Context) (*model.Whitelist, error) {
	var wl model.Whitelist
	if err := c.doJSON(ctx, http.MethodPost, "/v1/whitelist", nil, &wl); err != nil {
		return nil, err
	}
	return &wl, nil
}

func (c *HTTPClient) AddToWhitelist(ctx context.Context, identity string) (*engine.WhitelistResult, error) {
	body := map[string]string{"identity": identity}
	var res engine.WhitelistResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/whitelist/members", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) RemoveFromWhitelist(ctx context.Context, identity string) (*engine.WhitelistResult, error) {
	var res engine.WhitelistResult
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/whitelist/members/"+url.PathEscape(identity), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) GetWhitelist(ctx context.Context) (*model.Whitelist, error) {
	var wl model.Whitelist
	if err := c.doJSON(ctx, http.MethodGet, "/v1/whitelist", nil, &wl); err != nil {
		return nil, err
	}
	return &wl, nil
}

// --- Reputation and events ---

func (c *HTTPClient) GetReputation(ctx context.Context, player string) (*model.Reputation, error) {
	var rep model.Reputation
	if err := c.doJSON(ctx, http.MethodGet, "/v1/reputation/"+url.PathEscape(player), nil, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (c *HTTPClient) Leaderboard(ctx context.Context) ([]*model.Reputation, error) {
	var resp struct {
		Reputations []*model.Reputation `json:"reputations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/reputation", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reputations, nil
}

func (c *HTTPClient) GetEvents(ctx context.Context, ref string) ([]*model.Event, error) {
	q := url.Values{"ref": {ref}}
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/v1/events", q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

func roomPath(room, suffix string) string {
	return "/v1/rooms/" + url.PathEscape(room) + suffix
}

func claimPath(claim, suffix string) string {
	return "/v1/claims/" + url.PathEscape(claim) + suffix
}

func setPage(q url.Values, limit, offset int) {
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.identity != "" {
		req.Header.Set("X-Trustplay-Identity", c.identity)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
