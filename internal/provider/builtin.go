package provider

// APIKeys are optional vendor credentials. A major provider with a key is
// backed by the vendor's OpenAI-compatible endpoint; without one it answers
// with a placeholder completion.
type APIKeys struct {
	OpenAI    string
	Google    string
	Anthropic string
	Cohere    string
	Groq      string
}

type majorProvider struct {
	name        string
	displayName string
	baseURL     string
	models      []string
	key         func(APIKeys) string
}

var majorProviders = []majorProvider{
	{
		name:        "openai",
		displayName: "OpenAI",
		baseURL:     "https://api.openai.com/v1",
		models:      []string{"gpt-4", "gpt-4-turbo", "gpt-4-turbo-preview", "gpt-3.5-turbo", "gpt-3.5-turbo-16k"},
		key:         func(k APIKeys) string { return k.OpenAI },
	},
	{
		name:        "gemini",
		displayName: "Gemini",
		baseURL:     "https://generativelanguage.googleapis.com/v1beta/openai",
		models:      []string{"gemini-pro", "gemini-pro-vision", "gemini-1.5-pro", "gemini-1.5-flash", "gemini-2.0-flash", "gemini-2.5-pro"},
		key:         func(k APIKeys) string { return k.Google },
	},
	{
		name:        "claude",
		displayName: "Claude",
		baseURL:     "https://api.anthropic.com/v1",
		models:      []string{"claude-3-opus-20240229", "claude-3-sonnet-20240229", "claude-3-haiku-20240307", "claude-2.1", "claude-2.0", "claude-instant-1.2"},
		key:         func(k APIKeys) string { return k.Anthropic },
	},
	{
		name:        "groq",
		displayName: "GROQ",
		baseURL:     "https://api.groq.com/openai/v1",
		models: []string{
			"llama-3.1-405b-reasoning", "llama-3.1-70b-versatile", "llama-3.1-8b-instant",
			"llama3-groq-70b-8192-tool-use-preview", "llama3-groq-8b-8192-tool-use-preview",
			"mixtral-8x7b-32768", "gemma-7b-it", "gemma2-9b-it",
		},
		key: func(k APIKeys) string { return k.Groq },
	},
	{
		name:        "meta",
		displayName: "Meta AI",
		models: []string{
			"llama-3.2-90b-vision-instruct", "llama-3.2-11b-vision-instruct", "llama-3.2-3b-instruct",
			"llama-3.2-1b-instruct", "llama-3.1-405b-instruct", "llama-3.1-70b-instruct",
			"llama-3.1-8b-instruct", "code-llama-70b-instruct", "code-llama-34b-instruct", "code-llama-13b-instruct",
		},
	},
	{
		name:        "cohere",
		displayName: "Cohere",
		baseURL:     "https://api.cohere.ai/compatibility/v1",
		models:      []string{"command-r-plus", "command-r", "command", "command-nightly", "command-light", "command-light-nightly"},
		key:         func(k APIKeys) string { return k.Cohere },
	},
}

// communityProviders are the keyless chat backends. Each serves a default
// model and a "-pro" variant.
var communityProviders = []struct {
	name        string
	displayName string
	modelPrefix string
	category    string
}{
	{"ai4chat", "AI4Chat", "ai4chat", CategoryFree},
	{"aitopia", "Aitopia", "aitopia", CategoryFree},
	{"andisearch", "Andi Search", "andi", CategorySpecialized},
	{"blackboxai", "Blackbox AI", "blackbox", CategoryFree},
	{"cloudflare", "Cloudflare Workers AI", "cloudflare", CategoryFree},
	{"exaai", "Exa AI", "exaai", CategorySpecialized},
	{"freeaichat", "Free AI Chat", "freeaichat", CategoryFree},
	{"geminiapi", "Gemini API", "geminiapi", CategoryFree},
	{"githubchat", "GitHub Copilot", "github", CategorySpecialized},
	{"noushermes", "Nous Hermes", "hermes", CategoryExperimental},
	{"koala", "Koala", "koala", CategoryFree},
	{"lambdachat", "Lambda Chat", "lambdachat", CategoryFree},
	{"llama3", "Llama 3", "llama3", CategoryFree},
	{"llmchat", "LLMChat", "llmchat", CategoryFree},
	{"llmchatco", "LLMChat.co", "llmchatco", CategoryFree},
	{"lmarena", "LM Arena", "lmarena", CategoryExperimental},
	{"marcus", "Marcus", "marcus", CategoryExperimental},
	{"mcpcore", "MCP Core", "mcpcore", CategoryExperimental},
	{"multichatai", "MultiChat AI", "multichat", CategoryFree},
	{"nemotron", "Nemotron", "nemotron", CategoryExperimental},
	{"oivscode", "OI VSCode", "oivscode", CategorySpecialized},
	{"sciraai", "Scira AI", "scira", CategorySpecialized},
	{"scnet", "SCNet", "scnet", CategoryExperimental},
	{"searchchatai", "SearchChat AI", "searchchat", CategorySpecialized},
	{"teachanything", "TeachAnything", "teachanything", CategorySpecialized},
	{"typliai", "Typli AI", "typliai", CategoryFree},
	{"uncovrai", "Uncovr AI", "uncovr", CategorySpecialized},
	{"vercelai", "Vercel AI", "vercel", CategoryFree},
	{"wrdochat", "WrDo Chat", "wrdochat", CategoryFree},
	{"writecream", "Writecream", "writecream", CategoryFree},
	{"x0gpt", "X0GPT", "x0gpt", CategoryExperimental},
}

// Manifest returns the built-in provider specs.
func Manifest(keys APIKeys) []Spec {
	specs := make([]Spec, 0, len(majorProviders)+len(communityProviders))

	for _, p := range majorProviders {
		factory := PlaceholderFactory(p.name, p.displayName, p.models)
		if p.key != nil && p.baseURL != "" {
			if apiKey := p.key(keys); apiKey != "" {
				factory = UpstreamFactory(UpstreamConfig{
					Name:        p.name,
					DisplayName: p.displayName,
					BaseURL:     p.baseURL,
					APIKey:      apiKey,
					Models:      p.models,
				})
			}
		}
		specs = append(specs, Spec{
			Name:        p.name,
			DisplayName: p.displayName,
			Category:    CategoryMajor,
			New:         factory,
		})
	}

	for _, p := range communityProviders {
		specs = append(specs, Spec{
			Name:        p.name,
			DisplayName: p.displayName,
			Category:    p.category,
			New:         PlaceholderFactory(p.name, p.displayName, []string{"default", p.modelPrefix + "-pro"}),
		})
	}

	return specs
}
