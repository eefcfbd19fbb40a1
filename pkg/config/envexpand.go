package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes environment variables referenced as {{.VAR}} in
// raw config bytes. Unset variables expand to the empty string. Data that
// fails to parse or execute as a template is returned unchanged so the
// YAML parser can report the real problem.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("deepread.yaml").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}
