package index

import "shimcheck/internal/resolver"

// Cluster is a set of mutually redundant occurrences of one name, in the
// order they were recorded.
type Cluster struct {
	Name        string                 `json:"name"`
	Occurrences []resolver.Declaration `json:"occurrences"`
}

// Index collects every declaration of a run by qualified name.
type Index struct {
	names   []string
	entries map[string][]resolver.Declaration
	count   int
}

// New creates an empty index.
func New() *Index {
	return &Index{entries: make(map[string][]resolver.Declaration)}
}

// Record adds one occurrence.
func (i *Index) Record(d resolver.Declaration) {
	if _, ok := i.entries[d.QualifiedName]; !ok {
		i.names = append(i.names, d.QualifiedName)
	}
	i.entries[d.QualifiedName] = append(i.entries[d.QualifiedName], d)
	i.count++
}

// Len is the number of recorded occurrences.
func (i *Index) Len() int {
	return i.count
}

// Names lists every recorded name in first-recorded order.
func (i *Index) Names() []string {
	return append([]string(nil), i.names...)
}

// Occurrences returns the occurrences of name in recorded order.
func (i *Index) Occurrences(name string) []resolver.Declaration {
	return append([]resolver.Declaration(nil), i.entries[name]...)
}

// Finalize partitions the occurrences of every name into duplicate clusters.
//
// Occurrences without a signature share one bucket. Occurrences with a
// signature share a bucket only with structurally equal signatures, and never
// with unsigned ones. Every bucket holding two or more occurrences is a
// cluster, so one name may produce several.
func (i *Index) Finalize() []Cluster {
	var clusters []Cluster
	for _, name := range i.names {
		occurrences := i.entries[name]
		if len(occurrences) < 2 {
			continue
		}
		for _, bucket := range partition(occurrences) {
			if len(bucket) < 2 {
				continue
			}
			clusters = append(clusters, Cluster{Name: name, Occurrences: bucket})
		}
	}
	return clusters
}

// partition buckets occurrences by signature. Buckets are ordered by their
// first member, and members keep recorded order.
func partition(occurrences []resolver.Declaration) [][]resolver.Declaration {
	var buckets [][]resolver.Declaration
	unsigned := -1
	for _, d := range occurrences {
		if !d.HasSignature() {
			if unsigned < 0 {
				unsigned = len(buckets)
				buckets = append(buckets, nil)
			}
			buckets[unsigned] = append(buckets[unsigned], d)
			continue
		}
		placed := false
		for b := range buckets {
			if b == unsigned {
				continue
			}
			if buckets[b][0].Signature.Equal(d.Signature) {
				buckets[b] = append(buckets[b], d)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, []resolver.Declaration{d})
		}
	}
	return buckets
}
