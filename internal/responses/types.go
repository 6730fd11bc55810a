package responses

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ResponseIDPrefix is the marker the provider puts on every response
// identifier.
const ResponseIDPrefix = "resp_"

// CreateRequest is the body of POST /v1/responses.
type CreateRequest struct {
	Model              string            `json:"model"`
	Input              json.RawMessage   `json:"input,omitempty"`
	Instructions       string            `json:"instructions,omitempty"`
	PreviousResponseID string            `json:"previous_response_id,omitempty"`
	MaxOutputTokens    int               `json:"max_output_tokens,omitempty"`
	Temperature        float32           `json:"temperature,omitempty"`
	TopP               float32           `json:"top_p,omitempty"`
	Stream             bool              `json:"stream,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

func (r *CreateRequest) Validate() error {
	if r.Model == "" {
		return errors.New("model is required")
	}
	if len(r.Input) == 0 && r.Instructions == "" {
		return errors.New("input or instructions is required")
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}
	if r.TopP < 0 || r.TopP > 1 {
		return errors.New("top_p must be between 0 and 1")
	}
	return nil
}

// OutputItem is one element of a response's output array. Content is kept
// raw; the gateway never inspects it.
type OutputItem struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type,omitempty"`
	Role    string          `json:"role,omitempty"`
	Status  string          `json:"status,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the provider's response object.
type Response struct {
	ID                 string          `json:"id"`
	Object             string          `json:"object,omitempty"`
	CreatedAt          int64           `json:"created_at,omitempty"`
	Model              string          `json:"model,omitempty"`
	Status             string          `json:"status,omitempty"`
	Output             []OutputItem    `json:"output,omitempty"`
	PreviousResponseID string          `json:"previous_response_id,omitempty"`
	Usage              *Usage          `json:"usage,omitempty"`
	Error              json.RawMessage `json:"error,omitempty"`
}

// Event is one SSE event of a streamed response. Lifecycle events wrap the
// full response object; delta events carry item-level fields only.
type Event struct {
	Type           string    `json:"type"`
	ID             string    `json:"id,omitempty"`
	SequenceNumber int       `json:"sequence_number,omitempty"`
	Response       *Response `json:"response,omitempty"`
	ItemID         string    `json:"item_id,omitempty"`
	OutputIndex    int       `json:"output_index,omitempty"`
	Delta          string    `json:"delta,omitempty"`
	Text           string    `json:"text,omitempty"`
}

// DeletedResponse is the body returned by DELETE /v1/responses/{id}.
type DeletedResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

// Payload is any response payload whose primary response identifier can be
// read and rewritten. The primary identifier is the top-level id when it
// carries the resp_ prefix, otherwise the id of the response object wrapped
// one level deep — never both.
type Payload interface {
	PrimaryResponseID() string
	SetPrimaryResponseID(id string)
}

func (r *Response) PrimaryResponseID() string {
	if strings.HasPrefix(r.ID, ResponseIDPrefix) {
		return r.ID
	}
	return ""
}

func (r *Response) SetPrimaryResponseID(id string) {
	if strings.HasPrefix(r.ID, ResponseIDPrefix) {
		r.ID = id
	}
}

func (d *DeletedResponse) PrimaryResponseID() string {
	if strings.HasPrefix(d.ID, ResponseIDPrefix) {
		return d.ID
	}
	return ""
}

func (d *DeletedResponse) SetPrimaryResponseID(id string) {
	if strings.HasPrefix(d.ID, ResponseIDPrefix) {
		d.ID = id
	}
}

func (e *Event) PrimaryResponseID() string {
	if strings.HasPrefix(e.ID, ResponseIDPrefix) {
		return e.ID
	}
	if e.Response != nil && strings.HasPrefix(e.Response.ID, ResponseIDPrefix) {
		return e.Response.ID
	}
	return ""
}

func (e *Event) SetPrimaryResponseID(id string) {
	if strings.HasPrefix(e.ID, ResponseIDPrefix) {
		e.ID = id
		return
	}
	if e.Response != nil && strings.HasPrefix(e.Response.ID, ResponseIDPrefix) {
		e.Response.ID = id
	}
}

// StreamResult is one element of a streamed response relay. Either Event or
// Err is set.
type StreamResult struct {
	Event *Event
	Err   error
}

type Client interface {
	CreateResponse(ctx context.Context, req *CreateRequest) (*Response, error)
	CreateResponseStream(ctx context.Context, req *CreateRequest) (<-chan StreamResult, error)
	GetResponse(ctx context.Context, responseID string) (*Response, error)
	CancelResponse(ctx context.Context, responseID string) (*Response, error)
	DeleteResponse(ctx context.Context, responseID string) (*DeletedResponse, error)
}
