package store

type Favorite struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Cuisine string `json:"cuisine,omitempty"`
}

type recentLine struct {
	Query string `json:"query"`
}
