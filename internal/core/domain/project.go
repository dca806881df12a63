package domain

import "time"

// ElementType classifies project elements.
type ElementType string

const (
	ElementFolder        ElementType = "FOLDER"
	ElementItem          ElementType = "ITEM"
	ElementWorldbuilding ElementType = "WORLDBUILDING"
)

// IsStructured reports whether documents of this type keep their primary
// content in the auxiliary map rather than the prose tree.
func (t ElementType) IsStructured() bool {
	return t == ElementWorldbuilding
}

// Element is a node of a project's element tree.
type Element struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Type ElementType `json:"type"`
}

// Project is the last-known project metadata.
type Project struct {
	Username    string    `json:"username"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Elements    []Element `json:"elements,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Key returns the project's key.
func (p *Project) Key() ProjectKey {
	return ProjectKey{Username: p.Username, Slug: p.Slug}
}

// Element returns the element with the given id.
func (p *Project) Element(id string) (Element, bool) {
	id = ElementID(id)
	for _, e := range p.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return Element{}, false
}
