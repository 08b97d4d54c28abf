package models

import "time"

// Danmaku is an audience comment shown scrolling over the shared display.
type Danmaku struct {
	ID        ID     `json:"id"`
	UserID    ID     `json:"userId"`
	Nickname  string `json:"nickname,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt,omitempty"` // epoch millis
}

// Time returns CreatedAt as a time, zero when unset.
func (d Danmaku) Time() time.Time {
	if d.CreatedAt <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(d.CreatedAt)
}

// DanmakuPage is one page of the comment list.
type DanmakuPage struct {
	List  []Danmaku `json:"list"`
	Total int       `json:"total"`
}
