package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	flagModel   = "--model"
	flagContext = "--n_ctx"
	flagHost    = "--host"
	flagPort    = "--port"
)

// ErrFlagMissing is returned when a mutation expects a flag that is not
// present in the document. The --model flag is written at initialization time
// and its absence indicates a foreign edit.
var ErrFlagMissing = errors.New("required flag missing from runtime config")

// RuntimeConfig is the launch command for the inference service, decomposed
// from its on-disk form: a single shell-invokable command line. The typed
// record guarantees that --model and --n_ctx appear at most once; Encode
// emits them from dedicated fields rather than patching raw text.
type RuntimeConfig struct {
	// Program is the executable and any leading non-flag arguments.
	Program []string

	// ModelPath is the value of the --model flag. Empty means absent.
	ModelPath string

	// ContextSize is the value of the --n_ctx flag. Zero means the flag is
	// absent and the engine uses its built-in default.
	ContextSize int

	Host string
	Port int

	// Extra holds the remaining tokens in their original order.
	Extra []string
}

// ParseRuntimeConfig decodes the command-line document. Tokens may be
// double-quoted to carry spaces. Leading tokens up to the first flag form the
// program invocation; recognized flags are lifted into fields and everything
// else is preserved in Extra.
func ParseRuntimeConfig(doc string) (RuntimeConfig, error) {
	var rc RuntimeConfig
	tokens, err := splitCommand(strings.TrimSpace(doc))
	if err != nil {
		return rc, err
	}

	i := 0
	for ; i < len(tokens) && !strings.HasPrefix(tokens[i], "--"); i++ {
		rc.Program = append(rc.Program, tokens[i])
	}
	if len(rc.Program) == 0 {
		return rc, fmt.Errorf("runtime config has no program invocation")
	}

	for ; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok {
		case flagModel, flagContext, flagHost, flagPort:
			if i+1 >= len(tokens) {
				return rc, fmt.Errorf("flag %s has no value", tok)
			}
			value := tokens[i+1]
			i++
			switch tok {
			case flagModel:
				if rc.ModelPath != "" {
					return rc, fmt.Errorf("duplicate %s flag", flagModel)
				}
				rc.ModelPath = value
			case flagContext:
				if rc.ContextSize != 0 {
					return rc, fmt.Errorf("duplicate %s flag", flagContext)
				}
				n, err := strconv.Atoi(value)
				if err != nil || n <= 0 {
					return rc, fmt.Errorf("invalid %s value %q", flagContext, value)
				}
				rc.ContextSize = n
			case flagHost:
				rc.Host = value
			case flagPort:
				n, err := strconv.Atoi(value)
				if err != nil || n <= 0 {
					return rc, fmt.Errorf("invalid %s value %q", flagPort, value)
				}
				rc.Port = n
			}
		default:
			rc.Extra = append(rc.Extra, tok)
		}
	}
	return rc, nil
}

// Encode serializes the record back to its command-line form. Flag order is
// fixed (host, port, model, context, extras) so that encoding is
// deterministic; tokens containing spaces are double-quoted.
func (rc RuntimeConfig) Encode() string {
	tokens := append([]string{}, rc.Program...)
	if rc.Host != "" {
		tokens = append(tokens, flagHost, rc.Host)
	}
	if rc.Port > 0 {
		tokens = append(tokens, flagPort, strconv.Itoa(rc.Port))
	}
	if rc.ModelPath != "" {
		tokens = append(tokens, flagModel, rc.ModelPath)
	}
	if rc.ContextSize > 0 {
		tokens = append(tokens, flagContext, strconv.Itoa(rc.ContextSize))
	}
	tokens = append(tokens, rc.Extra...)

	quoted := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		quoted = append(quoted, quoteToken(tok))
	}
	return strings.Join(quoted, " ") + "\n"
}

// SetModel replaces the active model path. The flag must already exist; it is
// written at initialization time, so absence means the document was edited by
// hand and the caller must not guess.
func (rc *RuntimeConfig) SetModel(path string) error {
	if rc.ModelPath == "" {
		return fmt.Errorf("%w: %s", ErrFlagMissing, flagModel)
	}
	rc.ModelPath = path
	return nil
}

// SetContextSize sets the context-window size. The flag is appended when
// absent and replaced when present.
func (rc *RuntimeConfig) SetContextSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("context size must be a positive integer, got %d", n)
	}
	rc.ContextSize = n
	return nil
}

// ResetContextSize removes the context-size flag so the engine default
// applies. Removing an already-absent flag is a no-op.
func (rc *RuntimeConfig) ResetContextSize() {
	rc.ContextSize = 0
}

func quoteToken(tok string) string {
	if tok == "" || strings.ContainsAny(tok, " \t\"") {
		return strconv.Quote(tok)
	}
	return tok
}

func splitCommand(line string) ([]string, error) {
	var tokens []string
	for i := 0; i < len(line); {
		switch {
		case line[i] == ' ' || line[i] == '\t':
			i++
		case line[i] == '"':
			end := i + 1
			for end < len(line) {
				if line[end] == '\\' {
					end += 2
					continue
				}
				if line[end] == '"' {
					break
				}
				end++
			}
			if end >= len(line) {
				return nil, fmt.Errorf("unterminated quote at offset %d", i)
			}
			tok, err := strconv.Unquote(line[i : end+1])
			if err != nil {
				return nil, fmt.Errorf("malformed quoted token at offset %d: %s", i, err)
			}
			tokens = append(tokens, tok)
			i = end + 1
		default:
			end := i
			for end < len(line) && line[end] != ' ' && line[end] != '\t' {
				end++
			}
			tokens = append(tokens, line[i:end])
			i = end
		}
	}
	return tokens, nil
}
