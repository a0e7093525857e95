package models

// Warning is a non-fatal per-item notice returned alongside a result, e.g.
// from a completion reset that partially failed.
type Warning struct {
	Item    string `json:"item"`
	ItemID  int64  `json:"item_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
