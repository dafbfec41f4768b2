package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/multi-party-ecdh/internal/round"
	"github.com/taurusgroup/multi-party-ecdh/pkg/identity"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
	"github.com/taurusgroup/multi-party-ecdh/protocols/mpecdh"
)

// ClientOption configures requests to the API.
type ClientOption func(*caller)

// WithHTTPClient replaces the default client, which times out after 10 seconds.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *caller) { c.hc = hc }
}

type caller struct {
	base string
	hc   *http.Client
}

func newCaller(baseURL string, opts []ClientOption) caller {
	c := caller{
		base: strings.TrimRight(baseURL, "/") + "/v1/ceremonies",
		hc:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c caller) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := cbor.Marshal(in)
		if err != nil {
			return fmt.Errorf("transport: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", ContentType)
	}
	req.Header.Set("Accept", ContentType)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("transport: read response: %w", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		var e ErrorResponse
		if cbor.Unmarshal(data, &e) != nil {
			return decodeError(resp.StatusCode, nil)
		}
		return decodeError(resp.StatusCode, &e)
	}
	if out == nil {
		return nil
	}
	if err = cbor.Unmarshal(data, out); err != nil {
		return fmt.Errorf("transport: decode response: %w", err)
	}
	return nil
}

// Deploy asks the server at baseURL to deploy a ceremony for its wallet.
func Deploy(ctx context.Context, baseURL string, req DeployRequest, opts ...ClientOption) (*DeployResponse, error) {
	var resp DeployResponse
	if err := newCaller(baseURL, opts).do(ctx, http.MethodPost, "/", &req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Client is a participant's view of a remote ceremony. Its writes are signed by
// the participant's signer.
type Client struct {
	caller
	ceremonyID string
	signer     identity.Signer
}

var _ mpecdh.Contract = (*Client)(nil)

// NewClient returns a client for ceremonyID on the server at baseURL.
func NewClient(baseURL, ceremonyID string, s identity.Signer, opts ...ClientOption) *Client {
	return &Client{
		caller:     newCaller(baseURL, opts),
		ceremonyID: ceremonyID,
		signer:     s,
	}
}

// ID returns the ceremony ID.
func (c *Client) ID() string { return c.ceremonyID }

func (c *Client) path(elem ...string) string {
	escaped := make([]string, 0, len(elem)+1)
	escaped = append(escaped, url.PathEscape(c.ceremonyID))
	for _, e := range elem {
		escaped = append(escaped, url.PathEscape(e))
	}
	return "/" + strings.Join(escaped, "/")
}

func (c *Client) checkSigner(id party.ID) error {
	if id != c.signer.ID() {
		return fmt.Errorf("%w: client signs for %s, not %s", mpecdh.ErrUnauthorizedSigner, c.signer.ID(), id)
	}
	return nil
}

// SubmitAt implements mpecdh.Contract.
func (c *Client) SubmitAt(ctx context.Context, from party.ID, at mpecdh.Position, value []byte) error {
	if err := c.checkSigner(from); err != nil {
		return err
	}
	sig, err := c.signer.Sign(SubmissionMessage(c.ceremonyID, at, value))
	if err != nil {
		return fmt.Errorf("%w: %v", identity.ErrSignerUnavailable, err)
	}
	return c.do(ctx, http.MethodPost, c.path("submit"), &SubmitRequest{
		Party:     from,
		Epoch:     at.Epoch,
		Round:     at.Round,
		Seq:       at.Seq,
		Value:     value,
		Signature: sig,
	}, nil)
}

// Prepare implements mpecdh.Contract.
func (c *Client) Prepare(ctx context.Context, id party.ID) (round.Number, []byte, error) {
	var resp PrepareResponse
	if err := c.do(ctx, http.MethodGet, c.path("prepare", string(id)), nil, &resp); err != nil {
		return 0, nil, err
	}
	return resp.Round, resp.Value, nil
}

// Status implements mpecdh.Contract.
func (c *Client) Status(ctx context.Context, id party.ID) (*mpecdh.Status, error) {
	var st mpecdh.Status
	if err := c.do(ctx, http.MethodGet, c.path("status", string(id)), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Attest implements mpecdh.Contract.
func (c *Client) Attest(ctx context.Context, id party.ID, epoch uint64, tag []byte) error {
	if err := c.checkSigner(id); err != nil {
		return err
	}
	sig, err := c.signer.Sign(AttestationMessage(c.ceremonyID, epoch, tag))
	if err != nil {
		return fmt.Errorf("%w: %v", identity.ErrSignerUnavailable, err)
	}
	return c.do(ctx, http.MethodPost, c.path("attest"), &AttestRequest{
		Party:     id,
		Epoch:     epoch,
		Tag:       tag,
		Signature: sig,
	}, nil)
}

// Verdict implements mpecdh.Contract.
func (c *Client) Verdict(ctx context.Context) (mpecdh.Verdict, error) {
	var resp VerdictResponse
	if err := c.do(ctx, http.MethodGet, c.path("verdict"), nil, &resp); err != nil {
		return mpecdh.VerdictPending, err
	}
	return resp.Verdict, nil
}

// Epoch returns the current epoch of the ceremony, which approvals must be made for.
func (c *Client) Epoch(ctx context.Context) (uint64, error) {
	st, err := c.Status(ctx, c.signer.ID())
	if err != nil {
		return 0, err
	}
	return st.Epoch, nil
}

// Reconstruct submits owner approvals and returns the new epoch.
func (c *Client) Reconstruct(ctx context.Context, approvals []mpecdh.Approval) (uint64, error) {
	var resp ReconstructResponse
	if err := c.do(ctx, http.MethodPost, c.path("reconstruct"), &ReconstructRequest{Approvals: approvals}, &resp); err != nil {
		return 0, err
	}
	return resp.Epoch, nil
}
