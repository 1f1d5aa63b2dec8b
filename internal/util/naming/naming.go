package naming

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Node returns a fresh node name for the given cluster and node type.
// Characters that are invalid in host names are replaced with '-'.
func Node(cluster, nodeType string) string {
	return fmt.Sprintf("%s-%s-%s", cluster, sanitize(nodeType), Suffix(5))
}

// Head returns the name of the cluster's head node.
func Head(cluster string) string {
	return fmt.Sprintf("%s-head", cluster)
}

// StateObject returns the object key the state snapshot is stored under.
func StateObject(cluster string) string {
	return fmt.Sprintf("%s/state.yaml", cluster)
}

// StatePrefix returns the key prefix used for per-node records in key/value
// stores.
func StatePrefix(cluster string) string {
	return fmt.Sprintf("/clusterscaler/%s/nodes/", cluster)
}

// Suffix returns n random lowercase alphanumeric characters.
func Suffix(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	for i := range buf {
		buf[i] = suffixAlphabet[int(buf[i])%len(suffixAlphabet)]
	}
	return string(buf)
}

func sanitize(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}
