// Package config turns the CONFIG payload (environment JSON or a YAML/JSON
// file) into a types.Config.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mora-na/mimotions/types"
)

// EnvKey is the environment variable holding the JSON payload.
const EnvKey = "CONFIG"

// ErrNoConfig is returned when neither a file nor the CONFIG variable is set.
var ErrNoConfig = errors.New("CONFIG is not set and no config file was given")

// Raw is the decoded, untyped payload.
type Raw map[string]any

// ParseJSON decodes a CONFIG environment payload.
func ParseJSON(data string) (Raw, error) {
	if strings.TrimSpace(data) == "" {
		return nil, ErrNoConfig
	}
	var raw Raw
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("CONFIG is not a valid JSON object (use double quotes, no trailing commas): %w", err)
	}
	return raw, nil
}

// LoadFile reads a YAML or JSON config file.
func LoadFile(path string) (Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var raw Raw
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("config file %s is empty", path)
	}
	return raw, nil
}

// Decode converts raw into a typed Config, applying defaults.
func Decode(raw Raw) (*types.Config, error) {
	users, uok := raw["USER"]
	passwords, pok := raw["PWD"]
	if !uok || !pok || users == nil || passwords == nil {
		return nil, errors.New("USER and PWD must both be configured")
	}

	cfg := &types.Config{
		Users:     strings.Split(verbatim(users), "#"),
		Passwords: strings.Split(verbatim(passwords), "#"),
		SleepGap:  types.DefaultSleepGap,
		Push:      types.Push{Max: types.DefaultPushMax},
	}

	cfg.MinStep, cfg.MinStepErr = stepValue(raw, "MIN_STEP", "MIN_STEP")
	cfg.MaxStep, cfg.MaxStepErr = stepValue(raw, "MAX_STEP", "MAX_STEP")
	cfg.StepRanges = stepRanges(raw["STEP_RANGES"])

	if gap, ok, err := optFloat(raw, "SLEEP_GAP"); err != nil {
		return nil, err
	} else if ok {
		cfg.SleepGap = seconds(gap)
	}
	cfg.UseConcurrent = truthy(raw["USE_CONCURRENT"])
	if n, err := optInt(raw, "MAX_WORKERS"); err != nil {
		return nil, err
	} else if n != nil {
		cfg.MaxWorkers = *n
	}

	cfg.Push.Token = text(raw["PUSH_PLUS_TOKEN"])
	if h := text(raw["PUSH_PLUS_HOUR"]); h != "" && isDigits(h) {
		hour, _ := strconv.Atoi(h)
		cfg.Push.Hour = &hour
	}
	if n, err := optInt(raw, "PUSH_PLUS_MAX"); err != nil {
		return nil, err
	} else if n != nil {
		cfg.Push.Max = *n
	}

	cfg.Timezone = text(raw["TIMEZONE"])
	cfg.TokenFile = text(raw["TOKEN_FILE"])
	cfg.HistoryDB = text(raw["HISTORY_DB"])
	cfg.PushgatewayURL = text(raw["PUSHGATEWAY_URL"])
	cfg.RequestTimeout = types.DefaultRequestTimeout
	if v, ok, err := optFloat(raw, "REQUEST_TIMEOUT"); err != nil {
		return nil, err
	} else if ok && v > 0 {
		cfg.RequestTimeout = seconds(v)
	}
	if v, ok, err := optFloat(raw, "REQUEST_RPS"); err != nil {
		return nil, err
	} else if ok {
		cfg.RequestsPerSecond = v
	}

	return cfg, nil
}

// stepRanges reads STEP_RANGES. Anything that is not an object, at the top
// or per account, is ignored and the account falls back to the global bounds.
func stepRanges(v any) map[string]types.StepRange {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]types.StepRange, len(m))
	for account, entry := range m {
		em, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		var sr types.StepRange
		prefix := "STEP_RANGES." + account + "."
		sr.MinStep, sr.MinErr = stepValue(em, "MIN_STEP", prefix+"MIN_STEP")
		sr.MaxStep, sr.MaxErr = stepValue(em, "MAX_STEP", prefix+"MAX_STEP")
		out[account] = sr
	}
	return out
}

// stepValue reads a step bound. Numbers are truncated toward zero and
// strings must hold a whole integer. A present value of any other shape
// comes back as an error naming path, for the accounts that use it.
func stepValue(m map[string]any, key, path string) (*int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	var n int
	switch v := v.(type) {
	case int:
		n = v
	case float64:
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer, got %q", path, v)
		}
		n = parsed
	default:
		return nil, fmt.Errorf("%s must be an integer, got %v", path, v)
	}
	return &n, nil
}

// verbatim is text without trimming, for values whose whitespace matters.
func verbatim(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return text(v)
}

// text renders a scalar as a trimmed string; nil becomes "".
func text(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func optInt(m map[string]any, key string) (*int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	var n int
	switch v := v.(type) {
	case int:
		n = v
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%s must be an integer, got %v", key, v)
		}
		n = int(v)
	default:
		s := text(v)
		if s == "" {
			return nil, nil
		}
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer, got %q", key, s)
		}
		n = parsed
	}
	return &n, nil
}

func optFloat(m map[string]any, key string) (float64, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch v := v.(type) {
	case int:
		return float64(v), true, nil
	case float64:
		return v, true, nil
	}
	s := text(v)
	if s == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a number, got %q", key, s)
	}
	return f, true, nil
}

func truthy(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return v == "True" || v == "true"
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
