package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the base policy file lives relative to the
// working directory.
const DefaultConfigPath = "configs/crawl.policy.yaml"

// Resolve builds the run policy by merging layers from lowest to highest
// precedence: compiled-in defaults, the base YAML file, an optional profile
// overlay, then environment variables. Only keys present at a layer override
// the layer below; unknown keys are ignored; a value that fails coercion is
// dropped at that layer with a warning. Resolution never fails - a missing
// or unreadable file just leaves the prior layers in place.
func Resolve(basePath, profile string) Policy {
	p := Default()

	if basePath == "" {
		basePath = DefaultConfigPath
	}
	applyFile(&p, basePath, "base")

	if profile != "" {
		profilePath := filepath.Join(filepath.Dir(basePath), "profiles", profile+".yaml")
		applyFile(&p, profilePath, "profile:"+profile)
	}

	applyEnv(&p)
	p.clamp()
	return p
}

func applyFile(p *Policy, path, layer string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Str("layer", layer).Str("path", path).Err(err).
			Msg("Policy file not readable, keeping prior layer")
		return
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		log.Warn().Str("layer", layer).Str("path", path).Err(err).
			Msg("Policy file not valid YAML, keeping prior layer")
		return
	}

	applyDoc(p, doc, layer)
}

func applyDoc(p *Policy, doc map[string]any, layer string) {
	if sec := section(doc, "http"); sec != nil {
		setFloat(&p.HTTP.TimeoutSeconds, sec, "timeout_seconds", layer)
		setInt(&p.HTTP.Concurrency, sec, "concurrency", layer)
		setString(&p.HTTP.UserAgent, sec, "user_agent", layer)
		setBool(&p.HTTP.FollowRedirects, sec, "follow_redirects", layer)
		setInt(&p.HTTP.MaxRedirects, sec, "max_redirects", layer)
		setInt64(&p.HTTP.MaxBodyBytes, sec, "max_body_bytes", layer)
		setFloat(&p.HTTP.GlobalRPS, sec, "global_rps", layer)
	}
	if sec := section(doc, "retry"); sec != nil {
		setInt(&p.Retry.MaxAttempts, sec, "max_attempts", layer)
		setFloat(&p.Retry.BackoffBaseSeconds, sec, "backoff_base_seconds", layer)
		setFloat(&p.Retry.JitterMaxSeconds, sec, "jitter_max_seconds", layer)
		setStringList(&p.Retry.RetryOn, sec, "retry_on", layer)
		setStringList(&p.Retry.SkipRetryOn, sec, "skip_retry_on", layer)
	}
	if sec := section(doc, "protocol"); sec != nil {
		setBool(&p.Protocol.TryHTTPSFirst, sec, "try_https_first", layer)
		setBool(&p.Protocol.FallbackToHTTP, sec, "fallback_to_http", layer)
		setStringList(&p.Protocol.HTTPFallbackOn, sec, "http_fallback_on", layer)
	}
	if sec := section(doc, "robots"); sec != nil {
		setBool(&p.Robots.Enabled, sec, "enabled", layer)
		setInt(&p.Robots.CacheTTLSeconds, sec, "cache_ttl_seconds", layer)
		setBool(&p.Robots.RespectCrawlDelay, sec, "respect_crawl_delay", layer)
		setBool(&p.Robots.FailOpen, sec, "fail_open", layer)
	}
	if sec := section(doc, "user_agent_rotation"); sec != nil {
		setBool(&p.Rotation.Enabled, sec, "enabled", layer)
		setBool(&p.Rotation.Identify, sec, "identify", layer)
	}
}

// applyEnv applies the highest-precedence layer. Variables follow the same
// coercion rule as file layers: unparsable values warn and inherit.
func applyEnv(p *Policy) {
	if v := os.Getenv("CRAWLER_TIMEOUT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.HTTP.TimeoutSeconds = f
		} else {
			warnCoercion("env", "CRAWLER_TIMEOUT", v, "number")
		}
	}
	if v := os.Getenv("CRAWLER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.HTTP.Concurrency = n
		} else {
			warnCoercion("env", "CRAWLER_CONCURRENCY", v, "integer")
		}
	}
	if v := os.Getenv("CRAWLER_GLOBAL_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.HTTP.GlobalRPS = f
		} else {
			warnCoercion("env", "CRAWLER_GLOBAL_RPS", v, "number")
		}
	}
	if v := os.Getenv("ROBOTS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			p.Robots.Enabled = b
		} else {
			warnCoercion("env", "ROBOTS_ENABLED", v, "boolean")
		}
	}
}

func section(doc map[string]any, key string) map[string]any {
	sec, ok := doc[key].(map[string]any)
	if !ok {
		return nil
	}
	return sec
}

func warnCoercion(layer, key, value, want string) {
	log.Warn().
		Str("layer", layer).
		Str("key", key).
		Str("value", value).
		Str("expected", want).
		Msg("Policy value failed coercion, inheriting prior layer")
}

func setFloat(dst *float64, sec map[string]any, key, layer string) {
	raw, ok := sec[key]
	if !ok {
		return
	}
	switch v := raw.(type) {
	case float64:
		*dst = v
	case int:
		*dst = float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = f
		} else {
			warnCoercion(layer, key, v, "number")
		}
	default:
		warnCoercion(layer, key, fmt.Sprintf("%v", raw), "number")
	}
}

func setInt(dst *int, sec map[string]any, key, layer string) {
	raw, ok := sec[key]
	if !ok {
		return
	}
	switch v := raw.(type) {
	case int:
		*dst = v
	case float64:
		*dst = int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		} else {
			warnCoercion(layer, key, v, "integer")
		}
	default:
		warnCoercion(layer, key, fmt.Sprintf("%v", raw), "integer")
	}
}

func setInt64(dst *int64, sec map[string]any, key, layer string) {
	raw, ok := sec[key]
	if !ok {
		return
	}
	switch v := raw.(type) {
	case int:
		*dst = int64(v)
	case int64:
		*dst = v
	case float64:
		*dst = int64(v)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			*dst = n
		} else {
			warnCoercion(layer, key, v, "integer")
		}
	default:
		warnCoercion(layer, key, fmt.Sprintf("%v", raw), "integer")
	}
}

func setBool(dst *bool, sec map[string]any, key, layer string) {
	raw, ok := sec[key]
	if !ok {
		return
	}
	switch v := raw.(type) {
	case bool:
		*dst = v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		} else {
			warnCoercion(layer, key, v, "boolean")
		}
	default:
		warnCoercion(layer, key, fmt.Sprintf("%v", raw), "boolean")
	}
}

func setString(dst *string, sec map[string]any, key, layer string) {
	raw, ok := sec[key]
	if !ok {
		return
	}
	if v, ok := raw.(string); ok {
		*dst = v
		return
	}
	warnCoercion(layer, key, fmt.Sprintf("%v", raw), "string")
}

func setStringList(dst *[]string, sec map[string]any, key, layer string) {
	raw, ok := sec[key]
	if !ok {
		return
	}
	items, ok := raw.([]any)
	if !ok {
		warnCoercion(layer, key, fmt.Sprintf("%v", raw), "string list")
		return
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			warnCoercion(layer, key, fmt.Sprintf("%v", item), "string")
			return
		}
		out = append(out, s)
	}
	*dst = out
}
