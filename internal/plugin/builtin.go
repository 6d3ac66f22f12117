package plugin

import (
	"redcell/internal/types"
)

// templatePlugin is the common shape of the builtin generators: a fixed,
// ordered prompt pool plus per-case metadata. metaFn may be nil.
type templatePlugin struct {
	info     Info
	prompts  []string
	expected string
	metaKey  string
	metaFn   func(i int, params Params) map[string]string
}

func (p templatePlugin) Info() Info { return p.info }

func (p templatePlugin) Generate(n int, params Params) Generation {
	count := n
	truncated := false
	if count > len(p.prompts) {
		count = len(p.prompts)
		truncated = true
	}
	cases := make([]types.TestCase, 0, count)
	for i := 0; i < count; i++ {
		meta := map[string]string{
			"plugin":   p.info.ID,
			"severity": p.info.DefaultSeverity.String(),
		}
		if p.metaFn != nil {
			for k, v := range p.metaFn(i, params) {
				meta[k] = v
			}
		}
		id := types.NewID()
		cases = append(cases, types.TestCase{
			ID:               id,
			OriginID:         id,
			Prompt:           p.prompts[i],
			PluginID:         p.info.ID,
			ExpectedBehavior: p.expected,
			Metadata:         meta,
		})
	}
	return Generation{Cases: cases, Truncated: truncated}
}

// payloadPlugin builds prompts by cycling a payload list through context
// templates, used by the injection categories.
type payloadPlugin struct {
	info     Info
	payloads []string
	contexts []string
	expected string
}

func (p payloadPlugin) Info() Info { return p.info }

func (p payloadPlugin) Generate(n int, params Params) Generation {
	limit := len(p.payloads) * len(p.contexts)
	count := n
	truncated := false
	if count > limit {
		count = limit
		truncated = true
	}
	cases := make([]types.TestCase, 0, count)
	for i := 0; i < count; i++ {
		// Walk the full payload x context cross product so every pair up to
		// the advertised limit is distinct.
		payload := p.payloads[i%len(p.payloads)]
		context := p.contexts[(i/len(p.payloads))%len(p.contexts)]
		id := types.NewID()
		cases = append(cases, types.TestCase{
			ID:               id,
			OriginID:         id,
			Prompt:           formatContext(context, payload),
			PluginID:         p.info.ID,
			ExpectedBehavior: p.expected,
			Metadata: map[string]string{
				"plugin":   p.info.ID,
				"payload":  payload,
				"severity": p.info.DefaultSeverity.String(),
			},
		})
	}
	return Generation{Cases: cases, Truncated: truncated}
}

// Builtins returns one instance of every builtin plugin, in catalog order.
func Builtins() []Plugin {
	out := []Plugin{
		sqlInjectionPlugin(),
		promptInjectionPlugin(),
		harmfulContentPlugin(),
		piiPlugin(),
		hallucinationPlugin(),
	}
	out = append(out, piiBuiltins()...)
	out = append(out, harmfulBuiltins()...)
	out = append(out, securityBuiltins()...)
	out = append(out, brandBuiltins()...)
	return out
}

// cycleKey cycles a configurable parameter list into per-case metadata,
// falling back to defaults when the parameter is absent.
func cycleKey(metaName, paramKey string, defaults []string) func(i int, params Params) map[string]string {
	return func(i int, params Params) map[string]string {
		values := params.List(paramKey, defaults)
		if len(values) == 0 {
			return nil
		}
		return map[string]string{metaName: values[i%len(values)]}
	}
}

func formatContext(context, payload string) string {
	out := make([]byte, 0, len(context)+len(payload))
	for i := 0; i < len(context); i++ {
		if context[i] == '{' && i+1 < len(context) && context[i+1] == '}' {
			out = append(out, payload...)
			i++
			continue
		}
		out = append(out, context[i])
	}
	return string(out)
}
