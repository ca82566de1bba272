package discovery

import "github.com/cactuslab/cactus-client-go/internal/sep2"

// listAttrs reads the `all`/`results` attributes off any of the
// protocol's list container structs, so refreshList doesn't need a
// type switch over every list kind.
func listAttrs(container any) (all, results int) {
	return sep2.ListAttrs(container)
}
