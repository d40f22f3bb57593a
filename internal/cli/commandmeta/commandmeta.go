package commandmeta

import "strings"

type OutputPolicy uint8

const (
	OutputPolicyStructured OutputPolicy = iota
	OutputPolicyTextOnly
	OutputPolicyYAMLDefaultTextOrYAML
)

// commands that end with an [OK] or [ERROR] status line on stderr.
var statusPaths = map[string]bool{
	"declagate sync":       true,
	"declagate dump":       true,
	"declagate ping":       true,
	"declagate config use": true,
}

var outputPolicies = map[string]OutputPolicy{
	"declagate config show": OutputPolicyYAMLDefaultTextOrYAML,
	"declagate ping":        OutputPolicyTextOnly,
	"declagate config use":  OutputPolicyTextOnly,
}

func EmitsExecutionStatusPath(path string) bool {
	return statusPaths[strings.TrimSpace(path)]
}

// OutputPolicyForPath defaults to structured output. Shell completion
// scripts are always text.
func OutputPolicyForPath(path string) OutputPolicy {
	path = strings.TrimSpace(path)
	if path == "declagate completion" || strings.HasPrefix(path, "declagate completion ") {
		return OutputPolicyTextOnly
	}
	if policy, ok := outputPolicies[path]; ok {
		return policy
	}
	return OutputPolicyStructured
}
