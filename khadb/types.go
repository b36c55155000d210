package khadb

// SearchResult is one ranked neighbor returned by Search/BatchSearch
// (CORE SPEC §6: "SearchResult = (id uint32, distance float32,
// metadata optional)").
type SearchResult struct {
	ID       uint32
	Distance float32
	Metadata any
}
