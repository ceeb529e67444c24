package domain

import "fmt"

// FilterMissingPaths drops every row whose pathColumn cell is missing and
// returns the remaining rows as a new catalog along with the number dropped.
// The input catalog is left unchanged but callers should use the result.
func FilterMissingPaths(c *Catalog, pathColumn string) (*Catalog, int, error) {
	col, ok := c.Column(pathColumn)
	if !ok {
		return nil, 0, fmt.Errorf("filter missing paths: %w: %s", ErrUnknownColumn, pathColumn)
	}

	keep := make([]int, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if !col.Missing(i) {
			keep = append(keep, i)
		}
	}
	return c.Take(keep), c.Len() - len(keep), nil
}
