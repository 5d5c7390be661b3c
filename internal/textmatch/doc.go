// Package textmatch provides the normalization and approximate-matching
// primitives used to compare artist and release titles against noisy search
// results.
//
// Matching is length gated: very short tokens must match exactly, while longer
// tokens tolerate containment, small edit distances, and shared prefixes. This
// keeps "up" from matching "us" while still accepting typos and
// transliterations in longer words.
package textmatch
