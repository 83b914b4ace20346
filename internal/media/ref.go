package media

// Ref is a displayable media reference.
// Local refs point to the blob store and must be released when no longer displayed.
type Ref struct {
	URL   string `json:"url"`
	Local bool   `json:"local,omitempty"`
}

func (r Ref) String() string {
	return r.URL
}

func (r Ref) IsEmpty() bool {
	return r.URL == ""
}
