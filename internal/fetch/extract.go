// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/tidwall/gjson"
)

var errInvalidJSON = errors.New("response is not valid JSON")

// Extract evaluates gjson paths against body and returns the raw JSON of each
// match keyed like paths. Every path must match.
func Extract(body []byte, paths map[string]string) (map[string]json.RawMessage, error) {
	if !gjson.ValidBytes(body) {
		return nil, errInvalidJSON
	}

	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]json.RawMessage, len(paths))
	for _, k := range keys {
		res := gjson.GetBytes(body, paths[k])
		if !res.Exists() {
			return nil, &PathError{Path: paths[k]}
		}
		out[k] = json.RawMessage(res.Raw)
	}
	return out, nil
}

// GetJSON fetches url and extracts paths from the response.
func (c *Client) GetJSON(ctx context.Context, url string, paths map[string]string) (map[string]json.RawMessage, error) {
	body, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return Extract(body, paths)
}
