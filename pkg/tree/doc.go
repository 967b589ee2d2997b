// Package tree implements a forest of keyed nodes stored in an arena and
// addressed by integer ids.
//
// A node either holds a scalar value (leaf content) or composes its tails
// into an object or array. Subtrees may be shared between roots: Refer and
// Link attach an existing node under a second owner instead of copying it,
// which is how successive snapshots of the same content reuse every subtree
// that did not change. A node is freed once its last owner releases it.
package tree
