package models

// All lists the persisted models in migration order.
func All() []interface{} {
	return []interface{}{&User{}, &Post{}, &Comment{}, &Reaction{}, &Image{}}
}
