package rerank

import "strings"

// Option configures a Reranker.
type Option func(*Reranker)

// WithLowerIsBetter marks magnitude columns whose smallest value ranks first.
func WithLowerIsBetter(columns ...string) Option {
	return func(r *Reranker) {
		for _, c := range columns {
			r.lowerIsBetter[strings.TrimSuffix(c, RankSuffix)] = true
		}
	}
}

// WithExcludedPrefixes drops every rank column starting with one of prefixes.
func WithExcludedPrefixes(prefixes ...string) Option {
	return func(r *Reranker) {
		r.excluded = append(r.excluded, prefixes...)
	}
}
