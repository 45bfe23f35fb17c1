package catalog

import (
	"path/filepath"

	"github.com/wotrcz/wotrtl"
)

// MapFile is the index map file name inside a workspace.
const MapFile = "map.json"

// Catalog is the read-only context shared by every component: the source
// document and its index map.
type Catalog struct {
	Source *Document
	Map    *IndexMap
}

// Open loads the source document and the workspace's map.json. When the map
// does not exist yet it is derived from the source order (and not written).
func Open(sourcePath, workspace string) (*Catalog, error) {
	src, err := Load(sourcePath)
	if err != nil {
		return nil, err
	}
	mapPath := filepath.Join(workspace, MapFile)
	if workspace != "" && Exists(mapPath) {
		m, err := LoadIndexMap(mapPath)
		if err != nil {
			return nil, err
		}
		return &Catalog{Source: src, Map: m}, nil
	}
	return New(src), nil
}

// New creates a catalog whose map follows the order of src.
func New(src *Document) *Catalog {
	return &Catalog{Source: src, Map: NewIndexMap(src)}
}

// Row returns the source row of idx. GUIDs missing from the source yield
// an empty text.
func (c *Catalog) Row(idx int) (wotrtl.Row, bool) {
	guid, ok := c.Map.GUID(idx)
	if !ok {
		return wotrtl.Row{}, false
	}
	text, _ := c.Source.Get(guid)
	return wotrtl.Row{Idx: idx, GUID: guid, Text: text}, true
}

// Rows returns all mapped rows in index order.
func (c *Catalog) Rows() []wotrtl.Row {
	rows := make([]wotrtl.Row, 0, c.Map.Len())
	for _, idx := range c.Map.idxs {
		row, _ := c.Row(idx)
		rows = append(rows, row)
	}
	return rows
}

// SourceText returns the source text of guid.
func (c *Catalog) SourceText(guid string) string {
	text, _ := c.Source.Get(guid)
	return text
}
