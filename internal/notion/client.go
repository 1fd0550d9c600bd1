package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/quailyquaily/ticketbot/internal/ticket"
)

const (
	DefaultBaseURL = "https://api.notion.com"
	DefaultVersion = "2022-06-28"

	// Notion rejects rich text objects longer than this many UTF-16 units.
	maxTextContentChars = 2000
)

type Client struct {
	http       *http.Client
	baseURL    string
	token      string
	version    string
	databaseID string
}

type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	Token      string
	Version    string
	DatabaseID string
}

func New(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("missing notion token")
	}
	databaseID := strings.TrimSpace(opts.DatabaseID)
	if databaseID == "" {
		return nil, fmt.Errorf("missing notion database id")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimSpace(strings.TrimRight(opts.BaseURL, "/"))
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = DefaultVersion
	}
	return &Client{
		http:       httpClient,
		baseURL:    baseURL,
		token:      token,
		version:    version,
		databaseID: databaseID,
	}, nil
}

type parent struct {
	Type       string `json:"type"`
	DatabaseID string `json:"database_id"`
}

type textContent struct {
	Content string `json:"content"`
}

type richText struct {
	Text textContent `json:"text"`
}

type selectOption struct {
	Name string `json:"name"`
}

type property struct {
	Title       []richText     `json:"title,omitempty"`
	RichText    []richText     `json:"rich_text,omitempty"`
	Select      *selectOption  `json:"select,omitempty"`
	MultiSelect []selectOption `json:"multi_select,omitempty"`
}

type createPageRequest struct {
	Parent     parent              `json:"parent"`
	Properties map[string]property `json:"properties"`
}

type pageResponse struct {
	Object string `json:"object"`
	ID     string `json:"id"`
	URL    string `json:"url"`
}

// CreateRecord creates one page in the configured database. It makes a single
// attempt; callers decide what a failure means.
func (c *Client) CreateRecord(ctx context.Context, rec ticket.Record) (ticket.Created, error) {
	if c == nil || c.http == nil {
		return ticket.Created{}, fmt.Errorf("notion client is not initialized")
	}
	body, err := json.Marshal(buildCreatePageRequest(c.databaseID, rec))
	if err != nil {
		return ticket.Created{}, fmt.Errorf("marshal notion page: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/pages", bytes.NewReader(body))
	if err != nil {
		return ticket.Created{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ticket.Created{}, err
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ticket.Created{}, newRequestError(resp.StatusCode, raw)
	}
	var out pageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return ticket.Created{}, fmt.Errorf("decode notion page: %w", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return ticket.Created{}, fmt.Errorf("notion create page: missing id")
	}
	return ticket.Created{ID: out.ID, URL: out.URL}, nil
}

func buildCreatePageRequest(databaseID string, rec ticket.Record) createPageRequest {
	return createPageRequest{
		Parent: parent{Type: "database_id", DatabaseID: databaseID},
		Properties: map[string]property{
			"Name":        {Title: splitRichText(rec.Title)},
			"Priority":    {Select: &selectOption{Name: string(rec.Priority)}},
			"Tags":        {MultiSelect: []selectOption{{Name: string(rec.Tag)}}},
			"Status":      {Select: &selectOption{Name: string(rec.Status)}},
			"Description": {RichText: splitRichText(rec.Description)},
		},
	}
}

// splitRichText chunks text so no object exceeds Notion's content limit,
// which is measured in UTF-16 code units. Surrogate pairs are never split.
// Empty text still yields one empty object so the property is explicitly
// cleared.
func splitRichText(text string) []richText {
	if text == "" {
		return []richText{{Text: textContent{Content: ""}}}
	}
	var (
		out   []richText
		b     strings.Builder
		units int
	)
	for _, r := range text {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > maxTextContentChars {
			out = append(out, richText{Text: textContent{Content: b.String()}})
			b.Reset()
			units = 0
		}
		b.WriteRune(r)
		units += n
	}
	return append(out, richText{Text: textContent{Content: b.String()}})
}
