// Header and path rewriting (spec.md §4.6), generalized from the
// teacher's Director header-injection closure in internal/proxy/proxy.go
// into a data-driven rule set instead of hardcoded header names.
package dispatcher

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/chahine-tech/edgeproxy/internal/config"
)

var (
	conditionRegexCache   = map[string]*regexp.Regexp{}
	conditionRegexCacheMu sync.Mutex
)

func compileCached(pattern string) (*regexp.Regexp, error) {
	conditionRegexCacheMu.Lock()
	defer conditionRegexCacheMu.Unlock()
	if re, ok := conditionRegexCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	conditionRegexCache[pattern] = re
	return re, nil
}

// conditionHolds reports whether cond gates the action in, given the
// in-flight request and its already-matched path. A nil condition
// always holds.
func conditionHolds(cond *config.RequestCondition, r *http.Request) bool {
	if cond == nil {
		return true
	}
	if cond.PathMatches != "" {
		re, err := compileCached(cond.PathMatches)
		if err != nil || !re.MatchString(r.URL.Path) {
			return false
		}
	}
	if cond.MethodIs != "" && !strings.EqualFold(cond.MethodIs, r.Method) {
		return false
	}
	if cond.HasHeader != nil {
		v := r.Header.Get(cond.HasHeader.Name)
		if v == "" {
			return false
		}
		if cond.HasHeader.ValueMatches != "" {
			re, err := compileCached(cond.HasHeader.ValueMatches)
			if err != nil || !re.MatchString(v) {
				return false
			}
		}
	}
	return true
}

// applyRequestHeaders applies remove-then-add to an outbound request,
// matching spec.md §4.6's "remove -> add" ordering.
func applyRequestHeaders(actions *config.HeaderActions, r *http.Request) {
	if actions == nil || !conditionHolds(actions.Condition, r) {
		return
	}
	for _, name := range actions.Remove {
		r.Header.Del(name)
	}
	for name, value := range actions.Add {
		r.Header.Set(name, value)
	}
}

// applyResponseHeaders mirrors applyRequestHeaders for the response
// path. It gates on the original request's condition since the
// response itself carries no method/path.
func applyResponseHeaders(actions *config.HeaderActions, r *http.Request, resp *http.Response) {
	if actions == nil || !conditionHolds(actions.Condition, r) {
		return
	}
	for _, name := range actions.Remove {
		resp.Header.Del(name)
	}
	for name, value := range actions.Add {
		resp.Header.Set(name, value)
	}
}

// applyRequestBody replaces the outbound request body when configured,
// recomputing Content-Length so the upstream sees a consistent frame.
func applyRequestBody(actions *config.BodyActions, r *http.Request) error {
	if actions == nil || !conditionHolds(actions.Condition, r) {
		return nil
	}
	body, contentType, err := renderBody(actions)
	if err != nil || body == nil {
		return err
	}
	r.Body = io.NopCloser(strings.NewReader(*body))
	r.ContentLength = int64(len(*body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return nil
}

// applyResponseBody replaces the response body read back from the
// upstream before it is streamed to the client.
func applyResponseBody(actions *config.BodyActions, r *http.Request, resp *http.Response) error {
	if actions == nil || !conditionHolds(actions.Condition, r) {
		return nil
	}
	body, contentType, err := renderBody(actions)
	if err != nil || body == nil {
		return err
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(strings.NewReader(*body))
	resp.ContentLength = int64(len(*body))
	resp.Header.Set("Content-Length", strconv.Itoa(len(*body)))
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	return nil
}

func renderBody(actions *config.BodyActions) (*string, string, error) {
	if actions.SetText != nil {
		return actions.SetText, "text/plain; charset=utf-8", nil
	}
	if actions.SetJSON != nil {
		encoded, err := json.Marshal(actions.SetJSON)
		if err != nil {
			return nil, "", err
		}
		s := string(encoded)
		return &s, "application/json", nil
	}
	return nil, "", nil
}

// rewritePath computes the outbound path for a Proxy/LoadBalance
// dispatch: the remainder after stripping matchedPrefix, optionally
// replaced in full by pathRewrite (spec.md §4.6 — "the rewritten
// portion replaces the stripped remainder before concatenation").
func rewritePath(matchedPrefix, requestPath, pathRewrite string) string {
	remainder := strings.TrimPrefix(requestPath, matchedPrefix)
	if remainder == "" {
		remainder = "/"
	}
	if pathRewrite != "" {
		remainder = pathRewrite
	}
	return remainder
}
