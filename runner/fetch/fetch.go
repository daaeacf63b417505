package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/mohitkumar/automate/logger"
	"github.com/mohitkumar/automate/metadata"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

const RUNNER_NAME = "FetchRunner"

var verbs = []string{"get", "post", "put", "patch", "delete", "head", "options"}

type Parameter struct {
	Required bool           `mapstructure:"required"`
	Schema   map[string]any `mapstructure:"schema"`
}

type Parameters struct {
	Path        map[string]Parameter `mapstructure:"path"`
	Query       map[string]Parameter `mapstructure:"query"`
	Header      map[string]Parameter `mapstructure:"header"`
	Cookie      map[string]Parameter `mapstructure:"cookie"`
	RequestBody map[string]any       `mapstructure:"requestBody"`
}

// Definition is the method definition understood by the fetch runner.
type Definition struct {
	Operation  string         `mapstructure:"operation"`
	Source     string         `mapstructure:"source"`
	Parameters Parameters     `mapstructure:"parameters"`
	Returns    map[string]any `mapstructure:"returns"`
}

type StatusError struct {
	StatusCode int
	Status     string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("request failed with status %s", e.Status)
}

// Runner calls the http api described by a method definition.
type Runner struct {
	client *http.Client
}

var _ metadata.Runner = new(Runner)

func NewRunner(client *http.Client) *Runner {
	if client == nil {
		client = http.DefaultClient
	}
	return &Runner{client: client}
}

func (r *Runner) Name() string {
	return RUNNER_NAME
}

func decodeDefinition(raw map[string]any) (Definition, error) {
	var def Definition
	if err := mapstructure.Decode(raw, &def); err != nil {
		return def, fmt.Errorf("invalid fetch definition: %w", err)
	}
	def.Operation = strings.ToLower(def.Operation)
	valid := false
	for _, v := range verbs {
		if v == def.Operation {
			valid = true
		}
	}
	if !valid {
		return def, fmt.Errorf("invalid fetch definition: unsupported operation %q", def.Operation)
	}
	return def, nil
}

func (r *Runner) Execute(ctx context.Context, call metadata.Call, args map[string]any) (any, error) {
	if call.Method == nil || call.Method.Service == nil {
		return nil, fmt.Errorf("action %s: fetch method must belong to a service", call.ActionId)
	}
	def, err := decodeDefinition(call.Method.Definition)
	if err != nil {
		return nil, err
	}
	if err := validateArguments(def.Parameters, args); err != nil {
		return nil, err
	}

	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}
	req, err := buildRequest(ctx, call.Method.Service.ServerURL, def, args)
	if err != nil {
		return nil, err
	}
	logger.Debug("fetching", zap.String("action", call.ActionName), zap.String("method", req.Method), zap.String("url", req.URL.String()))
	res, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 400 {
		return nil, StatusError{StatusCode: res.StatusCode, Status: res.Status}
	}
	if len(body) == 0 {
		return res.Status, nil
	}
	contentType := strings.TrimSpace(strings.Split(res.Header.Get("Content-Type"), ";")[0])
	if contentType == "application/json" {
		var out any
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("invalid json response: %w", err)
		}
		return out, nil
	}
	if strings.HasPrefix(contentType, "text/") {
		return string(body), nil
	}
	return body, nil
}

func buildRequest(ctx context.Context, serverURL string, def Definition, args map[string]any) (*http.Request, error) {
	path := def.Source
	for name := range def.Parameters.Path {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(cast.ToString(args[name])))
	}
	u, err := url.Parse(strings.TrimSuffix(serverURL, "/") + path)
	if err != nil {
		return nil, err
	}
	if len(def.Parameters.Query) != 0 {
		q := u.Query()
		for _, name := range sortedKeys(def.Parameters.Query) {
			v, ok := args[name]
			if !ok {
				continue
			}
			for _, item := range cast.ToStringSlice(v) {
				q.Add(name, item)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if props := bodyProperties(def.Parameters.RequestBody); props != nil {
		payload := make(map[string]any)
		for _, name := range props {
			if v, ok := args[name]; ok {
				payload[name] = v
			}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(def.Operation), u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for name := range def.Parameters.Header {
		if v, ok := args[name]; ok {
			req.Header.Set(name, cast.ToString(v))
		}
	}
	for name := range def.Parameters.Cookie {
		if v, ok := args[name]; ok {
			req.AddCookie(&http.Cookie{Name: name, Value: cast.ToString(v)})
		}
	}
	return req, nil
}

// bodyProperties returns the json body properties of a request body schema, nil when there is no body.
func bodyProperties(requestBody map[string]any) []string {
	content, ok := requestBody["content"].(map[string]any)
	if !ok || len(content) == 0 {
		return nil
	}
	media, ok := content["application/json"].(map[string]any)
	if !ok {
		return []string{}
	}
	schema, _ := media["schema"].(map[string]any)
	props, _ := schema["properties"].(map[string]any)
	return sortedKeys(props)
}

func validateArguments(params Parameters, args map[string]any) error {
	for _, group := range []struct {
		in     string
		params map[string]Parameter
	}{
		{"path", params.Path},
		{"query", params.Query},
		{"header", params.Header},
		{"cookie", params.Cookie},
	} {
		for _, name := range sortedKeys(group.params) {
			p := group.params[name]
			if !p.Required {
				continue
			}
			if _, ok := args[name]; !ok {
				return fmt.Errorf("require argument '%s' in '%s' but it was not set", name, group.in)
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
