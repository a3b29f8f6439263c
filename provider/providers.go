// Package provider talks to the chat-completion services used for
// translation. Each service is described by a Spec; New picks the client
// variant that matches the service's capabilities.
package provider

import (
	"slices"
	"time"
)

// Provider identifiers.
const (
	OpenAI     = "openai"
	DeepSeek   = "deepseek"
	Zhipu      = "zhipu"
	Moonshot   = "moonshot"
	Qwen       = "qwen"
	HuaweiMaaS = "huawei_maas"
	Custom     = "custom"
)

// Request defaults.
const (
	DefaultTimeout     = 120 * time.Second
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 4000
)

// RecommendedBatchSizes are the batch sizes offered to users.
var RecommendedBatchSizes = []int{10, 20, 50, 100}

// Format selects the request and response shape of a service.
type Format int

const (
	// FormatOpenAI is the chat/completions shape shared by most services.
	FormatOpenAI Format = iota
	// FormatDashScope wraps messages in "input" and options in "parameters".
	FormatDashScope
	// FormatZhipu sends messages as "prompt"; the model is part of the URL
	// and requests are signed with a short-lived token.
	FormatZhipu
)

// Spec describes a translation service.
type Spec struct {
	// ID is the provider identifier used in configuration.
	ID string
	// Name is the display name.
	Name string
	// Endpoint is the chat-completion URL. Empty for Custom.
	Endpoint string
	// Models lists the known model names; the first one is the default.
	Models []string
	// Batching reports whether one request may carry a numbered list of
	// texts. Services without it are called once per text.
	Batching bool
	// InsecureTLS disables certificate verification for the service.
	InsecureTLS bool
	Format      Format
}

// DefaultModel returns the first known model of the service.
func (s Spec) DefaultModel() string {
	if len(s.Models) == 0 {
		return ""
	}
	return s.Models[0]
}

var specs = map[string]Spec{
	OpenAI: {
		ID:       OpenAI,
		Name:     "OpenAI",
		Endpoint: "https://api.openai.com/v1/chat/completions",
		Models:   []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-turbo", "gpt-4o", "gpt-4o-mini"},
		Batching: true,
	},
	DeepSeek: {
		ID:       DeepSeek,
		Name:     "DeepSeek",
		Endpoint: "https://api.deepseek.com/v1/chat/completions",
		Models:   []string{"deepseek-chat", "deepseek-coder"},
		Batching: true,
	},
	Zhipu: {
		ID:       Zhipu,
		Name:     "Zhipu AI (ChatGLM)",
		Endpoint: "https://open.bigmodel.cn/api/paas/v3/model-api/{model}/invoke",
		Models:   []string{"chatglm_pro", "chatglm_std", "chatglm_lite"},
		Format:   FormatZhipu,
	},
	Moonshot: {
		ID:       Moonshot,
		Name:     "Moonshot AI",
		Endpoint: "https://api.moonshot.cn/v1/chat/completions",
		Models:   []string{"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k"},
		Batching: true,
	},
	Qwen: {
		ID:       Qwen,
		Name:     "Alibaba Qwen (DashScope)",
		Endpoint: "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation",
		Models:   []string{"qwen-turbo", "qwen-plus", "qwen-max", "qwen-max-longcontext"},
		Format:   FormatDashScope,
	},
	HuaweiMaaS: {
		ID:          HuaweiMaaS,
		Name:        "Huawei Cloud MaaS",
		Endpoint:    "https://api.modelarts-maas.com/v2/chat/completions",
		Models:      []string{"deepseek-v3.2"},
		Batching:    true,
		InsecureTLS: true,
	},
	Custom: {
		ID:       Custom,
		Name:     "Custom (OpenAI-compatible)",
		Models:   []string{"custom-model"},
		Batching: true,
	},
}

// Lookup returns the spec for a provider identifier.
func Lookup(id string) (Spec, bool) {
	s, ok := specs[id]
	return s, ok
}

// IDs returns all provider identifiers in display order.
func IDs() []string {
	return []string{OpenAI, DeepSeek, Zhipu, Moonshot, Qwen, HuaweiMaaS, Custom}
}

// Specs returns every known provider in display order.
func Specs() []Spec {
	out := make([]Spec, 0, len(specs))
	for _, id := range IDs() {
		out = append(out, specs[id])
	}
	return out
}

// IsRecommendedBatchSize reports whether n is one of RecommendedBatchSizes.
func IsRecommendedBatchSize(n int) bool {
	return slices.Contains(RecommendedBatchSizes, n)
}
