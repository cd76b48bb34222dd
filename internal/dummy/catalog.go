package dummy

import (
	"sort"
	"strings"
	"sync"
)

type Computer struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Introduced   string `json:"introduced,omitempty"`
	Discontinued string `json:"discontinued,omitempty"`
	Company      string `json:"company,omitempty"`
}

var companies = map[int]string{
	1:  "Apple Inc.",
	2:  "Thinking Machines",
	6:  "Commodore International",
	13: "IBM",
	25: "Acer",
	36: "ASUS",
	37: "Amiga Corporation",
	43: "Sony",
}

var seedComputers = []Computer{
	{ID: 1, Name: "MacBook Pro 15.4 inch", Company: "Apple Inc."},
	{ID: 2, Name: "CM-2a", Company: "Thinking Machines"},
	{ID: 3, Name: "CM-200", Company: "Thinking Machines"},
	{ID: 89, Name: "MacBook", Introduced: "2006-05-16", Company: "Apple Inc."},
	{ID: 124, Name: "Amiga 500", Introduced: "1987-01-01", Company: "Commodore International"},
	{ID: 162, Name: "Commodore 64", Introduced: "1982-08-01", Discontinued: "1994-01-01", Company: "Commodore International"},
	{ID: 200, Name: "IBM PC", Introduced: "1981-08-12", Company: "IBM"},
	{ID: 224, Name: "Acer Aspire One", Introduced: "2008-06-03", Company: "Acer"},
	{ID: 312, Name: "ASUS Eee PC 1005PE", Introduced: "2010-01-01", Company: "ASUS"},
	{ID: 313, Name: "ASUS Eee PC 901", Company: "ASUS"},
	{ID: 355, Name: "Sony Vaio P", Introduced: "2009-02-16", Company: "Sony"},
	{ID: 381, Name: "MacBook Pro", Introduced: "2006-01-10", Company: "Apple Inc."},
	{ID: 400, Name: "iMac", Introduced: "1998-08-15", Company: "Apple Inc."},
	{ID: 401, Name: "Power Mac G4", Introduced: "1999-08-31", Discontinued: "2004-06-01", Company: "Apple Inc."},
	{ID: 402, Name: "Macintosh Classic", Introduced: "1990-10-15", Company: "Apple Inc."},
	{ID: 500, Name: "ThinkPad X1", Company: "IBM"},
}

// catalog is the in-memory computer table behind the server.
type catalog struct {
	mu     sync.RWMutex
	items  map[int]Computer
	nextID int
}

func newCatalog() *catalog {
	c := &catalog{items: make(map[int]Computer)}
	for _, comp := range seedComputers {
		c.items[comp.ID] = comp
		if comp.ID >= c.nextID {
			c.nextID = comp.ID + 1
		}
	}
	return c
}

func (c *catalog) get(id int) (Computer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.items[id]
	return comp, ok
}

func (c *catalog) add(comp Computer) Computer {
	c.mu.Lock()
	defer c.mu.Unlock()
	comp.ID = c.nextID
	c.nextID++
	c.items[comp.ID] = comp
	return comp
}

// search returns the page-th page (0-based) of computers whose name
// contains filter, case-insensitively, sorted by name, and the total match
// count.
func (c *catalog) search(filter string, page, size int) ([]Computer, int) {
	c.mu.RLock()
	var matches []Computer
	f := strings.ToLower(filter)
	for _, comp := range c.items {
		if f == "" || strings.Contains(strings.ToLower(comp.Name), f) {
			matches = append(matches, comp)
		}
	}
	c.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Name == matches[j].Name {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Name < matches[j].Name
	})
	total := len(matches)
	from := page * size
	if from >= total || from < 0 {
		return nil, total
	}
	to := from + size
	if to > total {
		to = total
	}
	return matches[from:to], total
}
