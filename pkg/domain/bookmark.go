package domain

// BookmarkID is the opaque identifier assigned to a bookmark by the external
// bookmark store. The scan engine never generates or mutates these.
type BookmarkID string

// Bookmark is a read-only reference to a bookmark owned by the external
// store. Results are communicated back by ID, the record itself is never
// modified here.
type Bookmark struct {
	ID    BookmarkID `json:"id"`
	URL   string     `json:"url"`
	Title string     `json:"title,omitempty"`
}
