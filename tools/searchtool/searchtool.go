// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package searchtool implements a web search tool backed by the
// Wikipedia REST API: it looks up a page summary for the query, and on a
// disambiguation or not-found response returns the candidate titles as
// the observation instead of erroring, so the planner can retry with a
// narrower query on the next iteration.
package searchtool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kadirpekel/llmcompiler/internal/httpclient"
)

const description = `search(query: str):
 - Looks up a Wikipedia page summary for the given entity.
 - Returns the first few sentences of the page.
 - If the entity is ambiguous or not found, returns a list of similar titles instead, which should be disambiguated in a subsequent search call.`

const defaultHost = "https://en.wikipedia.org"

// Tool looks up Wikipedia page summaries over HTTP.
type Tool struct {
	host       string
	httpClient *httpclient.Client
}

// New constructs a search Tool. host defaults to the public Wikipedia
// API when empty.
func New(host string) *Tool {
	if host == "" {
		host = defaultHost
	}
	return &Tool{host: host, httpClient: httpclient.New()}
}

func (t *Tool) Name() string        { return "search" }
func (t *Tool) Description() string { return description }

type summaryResponse struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

func (t *Tool) Invoke(ctx context.Context, args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("search: expected a query argument")
	}
	query, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("search: query argument must be a string")
	}

	resp, err := t.fetchSummary(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}

	if resp == nil {
		candidates, err := t.fetchCandidates(ctx, query)
		if err != nil {
			return "", fmt.Errorf("search: %w", err)
		}
		if len(candidates) == 0 {
			return fmt.Sprintf("Could not find %q.", query), nil
		}
		return fmt.Sprintf("Could not find %q. Similar: %s.", query, strings.Join(candidates, ", ")), nil
	}

	if resp.Type == "disambiguation" {
		return fmt.Sprintf("%q is ambiguous, refer to: %s", query, resp.Extract), nil
	}

	return firstSentences(resp.Extract, 5), nil
}

func (t *Tool) fetchSummary(ctx context.Context, query string) (*summaryResponse, error) {
	u := t.host + "/api/rest_v1/page/summary/" + url.PathEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.httpClient.Do(req)
	// httpclient reports a non-2xx status as an error alongside the
	// response, so not-found is recognized before err is checked.
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var parsed summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &parsed, nil
}

func (t *Tool) fetchCandidates(ctx context.Context, query string) ([]string, error) {
	u := t.host + "/w/api.php?action=opensearch&limit=5&format=json&search=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var parsed []any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed) < 2 {
		return nil, nil
	}
	titles, ok := parsed[1].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(titles))
	for _, title := range titles {
		if s, ok := title.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// firstSentences returns the first n sentences of text, matching the
// original's _get_page_obs truncation.
func firstSentences(text string, n int) string {
	parts := strings.Split(text, ". ")
	if len(parts) > n {
		parts = parts[:n]
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" && !strings.HasSuffix(p, ".") {
			p += "."
		}
		parts[i] = p
	}
	return strings.Join(parts, " ")
}
