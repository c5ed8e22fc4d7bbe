package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Options holds backend generation parameters. Every field is optional; nil
// means "let the backend decide". JSON names follow the Ollama option names.
type Options struct {
	Temperature      *float64 `json:"temperature,omitempty" toml:"temperature"`
	NumCtx           *int     `json:"num_ctx,omitempty" toml:"num_ctx"`
	NumPredict       *int     `json:"num_predict,omitempty" toml:"num_predict"`
	NumBatch         *int     `json:"num_batch,omitempty" toml:"num_batch"`
	NumGPU           *int     `json:"num_gpu,omitempty" toml:"num_gpu"`
	MainGPU          *int     `json:"main_gpu,omitempty" toml:"main_gpu"`
	NumThread        *int     `json:"num_thread,omitempty" toml:"num_thread"`
	NumKeep          *int     `json:"num_keep,omitempty" toml:"num_keep"`
	Seed             *int     `json:"seed,omitempty" toml:"seed"`
	TopK             *int     `json:"top_k,omitempty" toml:"top_k"`
	TopP             *float64 `json:"top_p,omitempty" toml:"top_p"`
	TypicalP         *float64 `json:"typical_p,omitempty" toml:"typical_p"`
	RepeatLastN      *int     `json:"repeat_last_n,omitempty" toml:"repeat_last_n"`
	RepeatPenalty    *float64 `json:"repeat_penalty,omitempty" toml:"repeat_penalty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" toml:"presence_penalty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" toml:"frequency_penalty"`
	Mirostat         *int     `json:"mirostat,omitempty" toml:"mirostat"`
	MirostatTau      *float64 `json:"mirostat_tau,omitempty" toml:"mirostat_tau"`
	MirostatEta      *float64 `json:"mirostat_eta,omitempty" toml:"mirostat_eta"`
	Numa             *bool    `json:"numa,omitempty" toml:"numa"`
	LowVRAM          *bool    `json:"low_vram,omitempty" toml:"low_vram"`
	UseMmap          *bool    `json:"use_mmap,omitempty" toml:"use_mmap"`
	UseMlock         *bool    `json:"use_mlock,omitempty" toml:"use_mlock"`
	Stop             []string `json:"stop,omitempty" toml:"stop"`
}

// Map returns the set options keyed by their wire names.
func (o Options) Map() map[string]any {
	b, err := json.Marshal(o)
	if err != nil {
		return map[string]any{}
	}
	m := map[string]any{}
	_ = json.Unmarshal(b, &m)
	return m
}

// IsZero reports whether no option is set.
func (o Options) IsZero() bool {
	return len(o.Map()) == 0
}

// OptionsFromMap builds Options from wire names. Unknown keys are rejected.
func OptionsFromMap(m map[string]any) (Options, error) {
	var o Options
	b, err := json.Marshal(m)
	if err != nil {
		return o, err
	}
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return o, fmt.Errorf("invalid options: %w", err)
	}
	return o, nil
}

// With returns a copy of o with one option set from its textual value.
// Numbers and booleans are parsed so "0.2" sets temperature to 0.2. An empty
// value clears the option.
func (o Options) With(name, value string) (Options, error) {
	m := o.Map()
	switch {
	case value == "":
		delete(m, name)
	case name == "stop":
		m[name] = strings.Split(value, ",")
	default:
		m[name] = parseScalar(value)
	}
	return OptionsFromMap(m)
}

func parseScalar(value string) any {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}
