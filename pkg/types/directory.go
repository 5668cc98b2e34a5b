package types

// DirectoryPage is one page of the node directory listing.
type DirectoryPage struct {
	Docs  []DirectoryDoc `json:"docs"`
	Pages int            `json:"pages"`
}

// DirectoryDoc is a single directory entry; ID holds host[:port].
type DirectoryDoc struct {
	ID string `json:"id"`
}
