package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	client "github.com/hanpama/graphstitch/internal/client"
)

var (
	errBodyTooLarge     = errors.New("body too large")
	errMissingQuery     = errors.New("missing 'query'")
	errInvalidJSON      = errors.New("invalid JSON")
	errInvalidVars      = errors.New("invalid 'variables' JSON")
	errEmptyBatch       = errors.New("empty batch")
	errReadBody         = errors.New("failed to read body")
	errUnsupportedMedia = errors.New("unsupported Content-Type")
)

// decodeParams reads one operation, or a batch when the JSON body is an
// array. GET takes query, operationName and variables from the URL.
// POST accepts application/json, and application/graphql with the query
// as the body.
func decodeParams(w http.ResponseWriter, r *http.Request, maxBody int64) (client.Params, []client.Params, error) {
	if r.Method == http.MethodGet {
		return paramsFromURL(r)
	}

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		var err error
		if mediaType, _, err = mime.ParseMediaType(ct); err != nil {
			return client.Params{}, nil, errUnsupportedMedia
		}
	}
	if mediaType != "application/json" && mediaType != "application/graphql" {
		return client.Params{}, nil, errUnsupportedMedia
	}

	body := io.Reader(r.Body)
	if maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBody)
	}
	data, err := io.ReadAll(body)
	defer r.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return client.Params{}, nil, errBodyTooLarge
		}
		return client.Params{}, nil, errReadBody
	}

	if mediaType == "application/graphql" {
		if len(data) == 0 {
			return client.Params{}, nil, errMissingQuery
		}
		return client.Params{Query: string(data), Variables: map[string]any{}}, nil, nil
	}

	if len(data) > 0 && data[0] == '[' {
		var batch []client.Params
		if err := json.Unmarshal(data, &batch); err != nil {
			return client.Params{}, nil, errInvalidJSON
		}
		if len(batch) == 0 {
			return client.Params{}, nil, errEmptyBatch
		}
		return client.Params{}, batch, nil
	}

	var p client.Params
	if err := json.Unmarshal(data, &p); err != nil {
		return client.Params{}, nil, errInvalidJSON
	}
	if p.Query == "" {
		return client.Params{}, nil, errMissingQuery
	}
	if p.Variables == nil {
		p.Variables = map[string]any{}
	}
	return p, nil, nil
}

func paramsFromURL(r *http.Request) (client.Params, []client.Params, error) {
	q := r.URL.Query()
	p := client.Params{
		Query:         q.Get("query"),
		OperationName: q.Get("operationName"),
		Variables:     map[string]any{},
	}
	if p.Query == "" {
		return client.Params{}, nil, errMissingQuery
	}
	if v := q.Get("variables"); v != "" {
		if err := json.Unmarshal([]byte(v), &p.Variables); err != nil {
			return client.Params{}, nil, errInvalidVars
		}
	}
	return p, nil, nil
}
