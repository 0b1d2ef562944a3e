package presence

import (
	"sort"
	"strings"
)

// Engine renders presence templates.
//
// A template is plain text with tokens written as {name} or
// {name|fallback}. Token names are case-insensitive. A token that is unknown
// or resolves to an empty value is replaced by its fallback, or removed when
// there is none. "{{" and "}}" produce literal braces.
//
// The resolver table is fixed at construction, so an Engine is safe for
// concurrent use.
type Engine struct {
	resolvers map[string]Resolver
}

// NewEngine creates an Engine with the built-in token table.
func NewEngine() *Engine {
	return NewEngineWithResolvers(DefaultResolvers())
}

// NewEngineWithResolvers creates an Engine with a custom token table.
// Keys are matched case-insensitively; nil resolvers are ignored.
func NewEngineWithResolvers(resolvers map[string]Resolver) *Engine {
	table := make(map[string]Resolver, len(resolvers))
	for name, r := range resolvers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || r == nil {
			continue
		}
		table[name] = r
	}
	return &Engine{resolvers: table}
}

// Tokens returns the known token names, sorted.
func (e *Engine) Tokens() []string {
	names := make([]string, 0, len(e.resolvers))
	for name := range e.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render substitutes the tokens of template using ctx.
// An empty template renders as "". A nil ctx returns template unchanged.
func (e *Engine) Render(template string, ctx *Context) string {
	if template == "" {
		return ""
	}
	if ctx == nil {
		return template
	}

	var sb strings.Builder
	sb.Grow(len(template))

	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			sb.WriteByte('{')
			i++

		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			sb.WriteByte('}')
			i++

		case c == '{':
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				// unterminated: keep the brace and continue scanning
				sb.WriteByte(c)
				continue
			}
			end += i + 1

			name, fallback, _ := strings.Cut(template[i+1:end], "|")
			name = strings.TrimSpace(name)
			fallback = strings.TrimSpace(fallback)

			if value, ok := e.resolve(name, ctx); ok && value != "" {
				sb.WriteString(value)
			} else if fallback != "" {
				sb.WriteString(fallback)
			}
			i = end

		default:
			sb.WriteByte(c)
		}
	}

	return sb.String()
}

// resolve looks up and runs a token resolver. A panicking resolver counts
// as an absent value.
func (e *Engine) resolve(name string, ctx *Context) (value string, ok bool) {
	if name == "" {
		return "", false
	}
	r, found := e.resolvers[strings.ToLower(name)]
	if !found {
		return "", false
	}

	defer func() {
		if recover() != nil {
			value, ok = "", false
		}
	}()
	return r(ctx)
}
