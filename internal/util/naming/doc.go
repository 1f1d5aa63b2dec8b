// Package naming provides consistent naming functions for cluster nodes and
// the objects stored on their behalf.
//
// Node names follow the pattern {cluster}-{type}-{5char}. The random suffix
// prevents naming conflicts when nodes are replaced while the provider still
// reports the old one.
package naming
