package models

// Headline is one sanitized feed item title.
type Headline struct {
	Title      string `json:"title"`
	SourceFeed string `json:"source_feed"`
}

// Titles returns just the headline texts, in order.
func Titles(hs []Headline) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Title
	}
	return out
}
